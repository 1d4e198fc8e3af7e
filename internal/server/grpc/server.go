// Package grpc exposes the session service over gRPC with a JSON codec.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/api"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address  string
	sessions api.SessionService
	limiter  api.RateLimiter
	limits   map[string]config.RateLimit
	debug    bool
	logger   logging.Logger
}

// NewGRPCServer builds the server. limits is keyed by limit class tag; a
// class without an entry is not rate limited.
func NewGRPCServer(a string, l logging.Logger, ss api.SessionService, rl api.RateLimiter, limits map[string]config.RateLimit, debug bool) *GRPCServer {
	return &GRPCServer{
		address:  a,
		sessions: ss,
		limiter:  rl,
		limits:   limits,
		debug:    debug,
		logger:   l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor, s.rateLimitInterceptor),
	)
	RegisterAuthServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			srv.GracefulStop()
		case <-stopped:
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
