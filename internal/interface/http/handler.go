package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/domain/auth"
	apperrors "github.com/yanqian/mindcheck/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	authSvc       auth.Service
	assessmentSvc assessment.Service
	logger        *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(authSvc auth.Service, assessmentSvc assessment.Service, logger *slog.Logger) *Handler {
	return &Handler{
		authSvc:       authSvc,
		assessmentSvc: assessmentSvc,
		logger:        logger.With("component", "http.handler"),
	}
}

// Register creates a new account.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "request body must be a JSON object", err))
		return
	}
	user, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, toHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login exchanges credentials for tokens.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "request body must be a JSON object", err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh issues a new token pair from a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "request body must be a JSON object", err))
		return
	}
	resp, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	profile, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Predict runs the screening pipeline for the caller.
func (h *Handler) Predict(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "request body must be a JSON object", err))
		return
	}
	resp, err := h.assessmentSvc.Assess(c.Request.Context(), claims.UserID, raw)
	if err != nil {
		abortWithError(c, toHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// History lists all records of the caller.
func (h *Handler) History(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	resp, err := h.assessmentSvc.History(c.Request.Context(), claims.UserID, c.Param("userId"))
	if err != nil {
		abortWithError(c, toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LatestHistory returns the caller's newest record.
func (h *Handler) LatestHistory(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	resp, err := h.assessmentSvc.Latest(c.Request.Context(), claims.UserID, c.Param("userId"))
	if err != nil {
		abortWithError(c, toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var statusByCode = map[string]int{
	assessment.CodeInvalidInput:      http.StatusBadRequest,
	assessment.CodeForbidden:         http.StatusForbidden,
	assessment.CodeUserNotFound:      http.StatusNotFound,
	assessment.CodeHistoryNotFound:   http.StatusNotFound,
	assessment.CodeModelUnavailable:  http.StatusInternalServerError,
	assessment.CodePersistenceFailed: http.StatusInternalServerError,
	auth.CodeInvalidToken:            http.StatusForbidden,
	auth.CodeInvalidCredentials:      http.StatusUnauthorized,
	auth.CodeEmailExists:             http.StatusConflict,
	auth.CodeAuthError:               http.StatusInternalServerError,
}

// toHTTPError maps an application error onto the response envelope. Only
// the AppError message reaches the client.
func toHTTPError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
	}
	httpErr := NewHTTPError(status, code, apperrors.MessageOf(err), err)
	if code == assessment.CodeInvalidInput {
		httpErr.Fields = assessment.FieldErrors(err)
	}
	return httpErr
}
