package grpc

import (
	"context"
	"net"
	"strconv"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/api"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityKey ctxKey = "identity"

// protectedMethods require a valid access token.
var protectedMethods = map[string]bool{
	MethodLogout:         true,
	MethodChangePassword: true,
	MethodMe:             true,
	MethodUpdateProfile:  true,
}

// limitClasses maps methods to their rate-limit class; everything else
// falls into common.EndpointAPI.
var limitClasses = map[string]string{
	MethodLogin:          common.EndpointLogin,
	MethodRegister:       common.EndpointRegister,
	MethodForgotPassword: common.EndpointPasswordReset,
	MethodResetPassword:  common.EndpointPasswordReset,
}

// IdentityFromContext returns the caller set by the access-token interceptor.
func IdentityFromContext(ctx context.Context) (services.Identity, bool) {
	id, ok := ctx.Value(identityKey).(services.Identity)
	return id, ok
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			header = values[0]
		}
	}
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, api.MsgMissingToken)
	}

	id, err := s.sessions.ValidateAccessToken(ctx, header)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, api.MsgTokenInvalid)
	}

	return handler(context.WithValue(ctx, identityKey, *id), req)
}

// rateLimitInterceptor keys auth methods by client address and the rest by
// the authenticated user, falling back to the address.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	class, ok := limitClasses[info.FullMethod]
	if !ok {
		class = common.EndpointAPI
	}

	limit, ok := s.limits[class]
	if !ok {
		return handler(ctx, req)
	}

	identifier := peerAddress(ctx)
	if class == common.EndpointAPI {
		if id, ok := IdentityFromContext(ctx); ok {
			identifier = strconv.FormatInt(id.UserID, 10)
		}
	}

	allowed, err := s.limiter.Check(ctx, identifier, class, limit)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if !allowed {
		return nil, status.Error(codes.ResourceExhausted, api.MsgRateLimited)
	}

	return handler(ctx, req)
}

func peerAddress(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
