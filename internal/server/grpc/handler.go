package grpc

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RetryAfterKey is the response header carrying the lock's remaining
// seconds on PermissionDenied.
const RetryAfterKey = "retry-after"

var _ AuthServiceServer = (*GRPCServer)(nil)

var kindCodes = map[api.Kind]codes.Code{
	api.KindInternal:        codes.Internal,
	api.KindBadRequest:      codes.InvalidArgument,
	api.KindValidation:      codes.InvalidArgument,
	api.KindUnauthenticated: codes.Unauthenticated,
	api.KindLocked:          codes.PermissionDenied,
	api.KindRateLimited:     codes.ResourceExhausted,
	api.KindConflict:        codes.AlreadyExists,
	api.KindNotFound:        codes.NotFound,
	api.KindForbidden:       codes.PermissionDenied,
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	u, err := s.sessions.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.RegisterResponse{Message: api.MsgCreated, User: api.NewUserInfo(u)}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	res, err := s.sessions.Login(ctx, req.Email, req.Password, req.RememberMe)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.LoginResponse{
		Message:         api.MsgLoginOK,
		AccessToken:     res.AccessToken,
		TokenType:       res.TokenType,
		ExpiresIn:       res.ExpiresIn,
		User:            api.NewUserInfo(res.User),
		RememberMeToken: res.RememberToken,
	}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.RefreshResponse, error) {
	if req.RememberMeToken == "" {
		return nil, status.Error(codes.InvalidArgument, "remember_me_token is required.")
	}

	pair, err := s.sessions.Refresh(ctx, req.RememberMeToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.RefreshResponse{
		Message:         api.MsgRefreshed,
		AccessToken:     pair.AccessToken,
		RememberMeToken: pair.RememberToken,
		TokenType:       pair.TokenType,
		ExpiresIn:       pair.ExpiresIn,
	}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.MessageResponse, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, api.MsgMissingToken)
	}

	if err := s.sessions.Logout(ctx, id, req.TokenJTI); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.MessageResponse{Message: api.MsgLoggedOut}, nil
}

func (s *GRPCServer) ForgotPassword(ctx context.Context, req *api.ForgotPasswordRequest) (*api.ForgotPasswordResponse, error) {
	ticket, err := s.sessions.ForgotPassword(ctx, req.Email)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := &api.ForgotPasswordResponse{Message: api.MsgResetRequested}
	if s.debug {
		resp.ResetToken = ticket.Token
		resp.ExpiresIn = ticket.ExpiresIn
	}
	return resp, nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *api.ResetPasswordRequest) (*api.MessageResponse, error) {
	if err := s.sessions.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.MessageResponse{Message: api.MsgPasswordReset}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.MessageResponse, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, api.MsgMissingToken)
	}

	if err := s.sessions.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.MessageResponse{Message: api.MsgPasswordChanged}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *api.MeRequest) (*api.UserResponse, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, api.MsgMissingToken)
	}

	u, err := s.sessions.Profile(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.UserResponse{User: api.NewUserInfo(u)}, nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.UserResponse, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, api.MsgMissingToken)
	}

	u, err := s.sessions.UpdateProfile(ctx, id, req.Username, req.Email)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.UserResponse{Message: api.MsgProfileUpdated, User: api.NewUserInfo(u)}, nil
}

// toStatus maps a service error to a gRPC status. Validation failures list
// the offending fields in the message.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	p := api.Describe(err, s.debug)

	msg := p.Message
	switch p.Kind {
	case api.KindValidation:
		msg = err.Error()
	case api.KindLocked:
		if p.RetryAfter > 0 {
			_ = grpc.SetHeader(ctx, metadata.Pairs(RetryAfterKey, strconv.FormatInt(p.RetryAfterSeconds(), 10)))
		}
	case api.KindInternal:
		s.logger.Error(ctx, "request failed", "error", err)
	}

	return status.Error(kindCodes[p.Kind], msg)
}
