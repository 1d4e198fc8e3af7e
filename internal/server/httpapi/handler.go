package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/api"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/gin-gonic/gin"
)

const msgInvalidJSON = "Invalid JSON input."

var kindStatus = map[api.Kind]int{
	api.KindInternal:        http.StatusInternalServerError,
	api.KindBadRequest:      http.StatusBadRequest,
	api.KindValidation:      http.StatusUnprocessableEntity,
	api.KindUnauthenticated: http.StatusUnauthorized,
	api.KindLocked:          http.StatusLocked,
	api.KindRateLimited:     http.StatusTooManyRequests,
	api.KindConflict:        http.StatusConflict,
	api.KindNotFound:        http.StatusNotFound,
	api.KindForbidden:       http.StatusForbidden,
}

// Handler holds the REST endpoints.
type Handler struct {
	sessions api.SessionService
	limiter  api.RateLimiter
	limits   map[string]config.RateLimit
	debug    bool
	logger   logging.Logger
}

func NewHandler(l logging.Logger, ss api.SessionService, rl api.RateLimiter, limits map[string]config.RateLimit, debug bool) *Handler {
	return &Handler{
		sessions: ss,
		limiter:  rl,
		limits:   limits,
		debug:    debug,
		logger:   l.With("module", "http_handler"),
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req api.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.sessions.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.RegisterResponse{Message: api.MsgCreated, User: api.NewUserInfo(u)})
}

func (h *Handler) Login(c *gin.Context) {
	var req api.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.LoginResponse{
		Message:         api.MsgLoginOK,
		AccessToken:     res.AccessToken,
		TokenType:       res.TokenType,
		ExpiresIn:       res.ExpiresIn,
		User:            api.NewUserInfo(res.User),
		RememberMeToken: res.RememberToken,
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req api.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RememberMeToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remember_me_token is required."})
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), req.RememberMeToken)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.RefreshResponse{
		Message:         api.MsgRefreshed,
		AccessToken:     pair.AccessToken,
		RememberMeToken: pair.RememberToken,
		TokenType:       pair.TokenType,
		ExpiresIn:       pair.ExpiresIn,
	})
}

// Logout accepts an empty body, which revokes every remember token.
func (h *Handler) Logout(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": api.MsgMissingToken})
		return
	}

	var req api.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), id, req.TokenJTI); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: api.MsgLoggedOut})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req api.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.sessions.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	resp := api.ForgotPasswordResponse{Message: api.MsgResetRequested}
	if h.debug {
		resp.ResetToken = ticket.Token
		resp.ExpiresIn = ticket.ExpiresIn
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req api.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.sessions.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: api.MsgPasswordReset})
}

func (h *Handler) Me(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": api.MsgMissingToken})
		return
	}

	u, err := h.sessions.Profile(c.Request.Context(), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.UserResponse{Message: api.MsgSuccess, User: api.NewUserInfo(u)})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": api.MsgMissingToken})
		return
	}

	var req api.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.sessions.UpdateProfile(c.Request.Context(), id, req.Username, req.Email)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.UserResponse{Message: api.MsgProfileUpdated, User: api.NewUserInfo(u)})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": api.MsgMissingToken})
		return
	}

	var req api.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.sessions.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: api.MsgPasswordChanged})
}

// bindJSON writes a 400 and reports false when the body is not valid JSON.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return false
	}
	return true
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	p := api.Describe(err, h.debug)

	switch p.Kind {
	case api.KindValidation:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": p.Message, "details": p.Fields})
		return
	case api.KindLocked:
		if secs := p.RetryAfterSeconds(); secs > 0 {
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
		}
	case api.KindInternal:
		h.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
	}

	c.AbortWithStatusJSON(kindStatus[p.Kind], gin.H{"error": p.Message})
}
