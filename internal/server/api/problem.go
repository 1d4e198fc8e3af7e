package api

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// Kind is the transport-neutral class of a failed call. Each boundary maps
// it to its own status vocabulary.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindValidation
	KindUnauthenticated
	KindLocked
	KindRateLimited
	KindConflict
	KindNotFound
	KindForbidden
)

// Problem is what a client is allowed to learn about an error.
type Problem struct {
	Kind       Kind
	Message    string
	Fields     map[string]string
	RetryAfter time.Duration
}

const (
	MsgInvalidCredentials = "Invalid credentials."
	MsgWrongPassword      = "Current password is incorrect."
	MsgAccountLocked      = "Account is temporarily locked. Try again later."
	MsgTokenInvalid       = "Invalid or expired token."
	MsgTokenReuse         = "Token reuse detected. All sessions in this family have been revoked."
	MsgResetTokenInvalid  = "Invalid or expired reset token."
	MsgRateLimited        = "Too many requests. Please try again later."
	MsgUserNotFound       = "User not found."
	MsgValidationFailed   = "Validation failed"
	MsgInternal           = "Internal server error."
	MsgMissingToken       = "Authorization token required."
)

// Describe classifies err. Internal details leak into the message only
// when debug is set.
func Describe(err error, debug bool) Problem {
	var verr *common.ValidationError
	var locked *common.LockedError

	switch {
	case errors.As(err, &verr):
		return Problem{Kind: KindValidation, Message: MsgValidationFailed, Fields: verr.Fields}
	case errors.As(err, &locked):
		return Problem{Kind: KindLocked, Message: MsgAccountLocked, RetryAfter: locked.RetryAfter}
	case errors.Is(err, common.ErrAccountLocked):
		return Problem{Kind: KindLocked, Message: MsgAccountLocked}
	case errors.Is(err, common.ErrInvalidCredentials):
		return Problem{Kind: KindUnauthenticated, Message: MsgInvalidCredentials}
	case errors.Is(err, common.ErrWrongCurrentPassword):
		return Problem{Kind: KindForbidden, Message: MsgWrongPassword}
	case errors.Is(err, common.ErrTokenReuseDetected):
		return Problem{Kind: KindUnauthenticated, Message: MsgTokenReuse}
	case errors.Is(err, common.ErrTokenInvalid), errors.Is(err, common.ErrorUnauthorized):
		return Problem{Kind: KindUnauthenticated, Message: MsgTokenInvalid}
	case errors.Is(err, common.ErrResetTokenInvalid):
		return Problem{Kind: KindBadRequest, Message: MsgResetTokenInvalid}
	case errors.Is(err, common.ErrRateLimited):
		return Problem{Kind: KindRateLimited, Message: MsgRateLimited}
	case errors.Is(err, common.ErrConflict):
		return Problem{Kind: KindConflict, Message: conflictMessage(err)}
	case errors.Is(err, common.ErrorNotFound):
		return Problem{Kind: KindNotFound, Message: MsgUserNotFound}
	}

	p := Problem{Kind: KindInternal, Message: MsgInternal}
	if debug && err != nil {
		p.Message = err.Error()
	}
	return p
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (p Problem) RetryAfterSeconds() int64 {
	return int64(math.Ceil(p.RetryAfter.Seconds()))
}

// conflictMessage turns "conflict: email already in use" into
// "Email already in use."
func conflictMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), common.ErrConflict.Error())
	msg = strings.TrimSpace(strings.TrimPrefix(msg, ":"))
	if msg == "" {
		return "Resource already exists."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
