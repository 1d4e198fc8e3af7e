// Package common contains shared constants and sentinel errors used across
// sessionkeeper components.
package common

// AuthorizationHeaderName is the gRPC metadata key / HTTP header carrying
// the bearer access token.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"

// Limit class tags used as the endpoint part of a rate-limit key.
const (
	EndpointLogin         = "/api/auth/login"
	EndpointRegister      = "/api/auth/register"
	EndpointPasswordReset = "/api/auth/password-reset"
	EndpointAPI           = "api_general"
)
