package handler

import (
	"fmt"
	"net/http"
	"strconv"

	domain "user-rest-service/internal/domain/user"
	"user-rest-service/internal/usecase/user"
	pkgerrors "user-rest-service/pkg/errors"
	"user-rest-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.UserUsecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.UserUsecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// UserRequest represents the HTTP request body for creating or updating a user.
// An id in the body is ignored.
type UserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, pkgerrors.NewValidationError("body", err.Error()))
		return
	}

	u := domain.New(req.Name, req.Email)
	if err := h.uc.Create(c.Request.Context(), &u); err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("%s/%d", c.FullPath(), u.ID))
	c.Status(http.StatusNoContent)
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.uc.ListAll(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = toResponse(u)
	}

	c.JSON(http.StatusOK, resp)
}

// GetUser handles GET /users/:id.
// An unknown id answers 204 with an empty body.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	u, found, err := h.uc.FindByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !found {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, toResponse(u))
}

// UpdateUser handles PUT /users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, pkgerrors.NewValidationError("body", err.Error()))
		return
	}

	if err := h.uc.Update(c.Request.Context(), id, domain.New(req.Name, req.Email)); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteUser handles DELETE /users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.uc.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.handleError(c, pkgerrors.NewValidationError("id", "User ID must be a valid number"))
		return 0, false
	}
	return id, true
}

// handleError converts errors to HTTP responses. Only request shape errors
// are reported to the client; anything else is a generic internal error.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	hs := pkgerrors.AsHTTPStatuser(err)
	log := logger.WithContext(c.Request.Context(), h.log)

	status := hs.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, ErrorResponse{
			Error:   hs.Code(),
			Message: "An internal error occurred",
		})
		return
	}

	log.Warn("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, ErrorResponse{
		Error:   hs.Code(),
		Message: hs.Error(),
	})
}

func toResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
