package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-api/internal/auth"
	"user-api/internal/domain"
	"user-api/internal/service"
)

// Handler wires HTTP routes to the user service.
type Handler struct {
	users  service.UserService
	tokens *auth.TokenIssuer
	logger logrus.FieldLogger
}

func NewHandler(users service.UserService, tokens *auth.TokenIssuer, logger logrus.FieldLogger) *Handler {
	return &Handler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger))

	router.POST("/auth/login", h.login)

	api := router.Group("/api")
	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	users := api.Group("/users", authMiddleware(h.tokens))
	{
		users.POST("", requireAdmin(), h.createUser)
		users.GET("", requireAdmin(), h.listAllUsers)
		users.GET("/active", requireAdmin(), h.listActiveUsers)
		users.GET("/me", h.getPersonalInfo)
		users.GET("/older-than/:age", requireAdmin(), h.listOlderThan)
		users.GET("/:login", requireAdmin(), h.getUser)
		users.PUT("/:login", h.updateUser)
		users.PATCH("/:login/password", h.changePassword)
		users.PATCH("/:login/login", h.changeLogin)
		users.PATCH("/:login/restore", requireAdmin(), h.restoreUser)
		users.DELETE("/:login", requireAdmin(), h.deleteUser)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid login or password, or the account is blocked"})
			return
		}
		h.respondError(c, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		Role:      user.Role(),
		ExpiresAt: formatTime(expiresAt),
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), identityFrom(c), req.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Location", "/api/users/"+user.Login)
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.users.UpdateProfile(c.Request.Context(), identityFrom(c), c.Param("login"), req.toInput()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), identityFrom(c), c.Param("login"), req.NewPassword, req.CurrentPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changeLogin(c *gin.Context) {
	var req changeLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.users.ChangeLogin(c.Request.Context(), identityFrom(c), c.Param("login"), req.NewLogin); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listActiveUsers(c *gin.Context) {
	users, err := h.users.ListActiveUsers(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usersToResponse(users))
}

func (h *Handler) listAllUsers(c *gin.Context) {
	users, err := h.users.ListAllUsers(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usersToResponse(users))
}

func (h *Handler) listOlderThan(c *gin.Context) {
	age, err := strconv.Atoi(c.Param("age"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid age"})
		return
	}

	users, err := h.users.ListOlderThan(c.Request.Context(), identityFrom(c), age)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usersToResponse(users))
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), identityFrom(c), c.Param("login"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userSummaryResponse{
		Name:     user.Name,
		Gender:   user.Gender,
		Birthday: formatDate(user.Birthday),
		IsActive: user.Active(),
	})
}

func (h *Handler) getPersonalInfo(c *gin.Context) {
	user, err := h.users.GetPersonalInfo(c.Request.Context(), identityFrom(c), c.Query("password"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, personalInfoResponse{
		Login:    user.Login,
		Name:     user.Name,
		Gender:   user.Gender,
		Birthday: formatDate(user.Birthday),
	})
}

func (h *Handler) deleteUser(c *gin.Context) {
	soft, err := strconv.ParseBool(c.DefaultQuery("soft", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag soft"})
		return
	}

	actor := identityFrom(c)
	if soft {
		err = h.users.SoftDelete(c.Request.Context(), actor, c.Param("login"))
	} else {
		err = h.users.HardDelete(c.Request.Context(), actor, c.Param("login"))
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) restoreUser(c *gin.Context) {
	if err := h.users.Restore(c.Request.Context(), identityFrom(c), c.Param("login")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps service failure kinds to status codes. Unclassified
// errors are logged and reported without detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, domain.ErrPermissionDenied):
		if identityFrom(c).Anonymous() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domain.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
