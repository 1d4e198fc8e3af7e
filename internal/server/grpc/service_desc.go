package grpc

import (
	"context"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/api"
	"google.golang.org/grpc"
)

const ServiceName = "sessionkeeper.v1.AuthService"

// Full method names, as seen by interceptors.
const (
	MethodRegister       = "/" + ServiceName + "/Register"
	MethodLogin          = "/" + ServiceName + "/Login"
	MethodRefresh        = "/" + ServiceName + "/Refresh"
	MethodLogout         = "/" + ServiceName + "/Logout"
	MethodForgotPassword = "/" + ServiceName + "/ForgotPassword"
	MethodResetPassword  = "/" + ServiceName + "/ResetPassword"
	MethodChangePassword = "/" + ServiceName + "/ChangePassword"
	MethodMe             = "/" + ServiceName + "/Me"
	MethodUpdateProfile  = "/" + ServiceName + "/UpdateProfile"
)

// AuthServiceServer is the server API for the AuthService service.
type AuthServiceServer interface {
	Register(context.Context, *api.RegisterRequest) (*api.RegisterResponse, error)
	Login(context.Context, *api.LoginRequest) (*api.LoginResponse, error)
	Refresh(context.Context, *api.RefreshRequest) (*api.RefreshResponse, error)
	Logout(context.Context, *api.LogoutRequest) (*api.MessageResponse, error)
	ForgotPassword(context.Context, *api.ForgotPasswordRequest) (*api.ForgotPasswordResponse, error)
	ResetPassword(context.Context, *api.ResetPasswordRequest) (*api.MessageResponse, error)
	ChangePassword(context.Context, *api.ChangePasswordRequest) (*api.MessageResponse, error)
	Me(context.Context, *api.MeRequest) (*api.UserResponse, error)
	UpdateProfile(context.Context, *api.UpdateProfileRequest) (*api.UserResponse, error)
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(MethodRegister, AuthServiceServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, AuthServiceServer.Login)},
		{MethodName: "Refresh", Handler: unaryHandler(MethodRefresh, AuthServiceServer.Refresh)},
		{MethodName: "Logout", Handler: unaryHandler(MethodLogout, AuthServiceServer.Logout)},
		{MethodName: "ForgotPassword", Handler: unaryHandler(MethodForgotPassword, AuthServiceServer.ForgotPassword)},
		{MethodName: "ResetPassword", Handler: unaryHandler(MethodResetPassword, AuthServiceServer.ResetPassword)},
		{MethodName: "ChangePassword", Handler: unaryHandler(MethodChangePassword, AuthServiceServer.ChangePassword)},
		{MethodName: "Me", Handler: unaryHandler(MethodMe, AuthServiceServer.Me)},
		{MethodName: "UpdateProfile", Handler: unaryHandler(MethodUpdateProfile, AuthServiceServer.UpdateProfile)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sessionkeeper/v1/auth",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unaryHandler decodes the request and runs call through the interceptor
// chain, the same way generated service code does.
func unaryHandler[Req, Resp any](fullMethod string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthServiceClient calls AuthService over the JSON codec.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) Register(ctx context.Context, in *api.RegisterRequest, opts ...grpc.CallOption) (*api.RegisterResponse, error) {
	return invoke[api.RegisterResponse](ctx, c.cc, MethodRegister, in, opts)
}

func (c *AuthServiceClient) Login(ctx context.Context, in *api.LoginRequest, opts ...grpc.CallOption) (*api.LoginResponse, error) {
	return invoke[api.LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *AuthServiceClient) Refresh(ctx context.Context, in *api.RefreshRequest, opts ...grpc.CallOption) (*api.RefreshResponse, error) {
	return invoke[api.RefreshResponse](ctx, c.cc, MethodRefresh, in, opts)
}

func (c *AuthServiceClient) Logout(ctx context.Context, in *api.LogoutRequest, opts ...grpc.CallOption) (*api.MessageResponse, error) {
	return invoke[api.MessageResponse](ctx, c.cc, MethodLogout, in, opts)
}

func (c *AuthServiceClient) ForgotPassword(ctx context.Context, in *api.ForgotPasswordRequest, opts ...grpc.CallOption) (*api.ForgotPasswordResponse, error) {
	return invoke[api.ForgotPasswordResponse](ctx, c.cc, MethodForgotPassword, in, opts)
}

func (c *AuthServiceClient) ResetPassword(ctx context.Context, in *api.ResetPasswordRequest, opts ...grpc.CallOption) (*api.MessageResponse, error) {
	return invoke[api.MessageResponse](ctx, c.cc, MethodResetPassword, in, opts)
}

func (c *AuthServiceClient) ChangePassword(ctx context.Context, in *api.ChangePasswordRequest, opts ...grpc.CallOption) (*api.MessageResponse, error) {
	return invoke[api.MessageResponse](ctx, c.cc, MethodChangePassword, in, opts)
}

func (c *AuthServiceClient) Me(ctx context.Context, in *api.MeRequest, opts ...grpc.CallOption) (*api.UserResponse, error) {
	return invoke[api.UserResponse](ctx, c.cc, MethodMe, in, opts)
}

func (c *AuthServiceClient) UpdateProfile(ctx context.Context, in *api.UpdateProfileRequest, opts ...grpc.CallOption) (*api.UserResponse, error) {
	return invoke[api.UserResponse](ctx, c.cc, MethodUpdateProfile, in, opts)
}
