package notification

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OpraEria/gather/internal/handler"
	"github.com/OpraEria/gather/internal/middleware"
	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/service/notification"
)

type Handler struct {
	service notification.Service
}

func NewHandler(service notification.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the authenticated subscription endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.POST("/subscribe", h.Subscribe)
		notifications.POST("/unsubscribe", h.Unsubscribe)
	}
}

// RegisterSendRoute registers the fan-out endpoint. It stays outside the
// authenticated group: server-to-server callers supply explicit
// identifiers in the body instead of a session token.
func (h *Handler) RegisterSendRoute(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	r.POST("/notifications/send", auth.AuthenticateOptional(), h.Send)
}

func (h *Handler) Subscribe(c *gin.Context) {
	identity := middleware.Identity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req model.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.Subscribe(c.Request.Context(), identity.UserID, req.Subscription); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"subscribed": true}))
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	identity := middleware.Identity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	if err := h.service.Unsubscribe(c.Request.Context(), identity.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"subscribed": false}))
}

func (h *Handler) Send(c *gin.Context) {
	var req model.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	summary, err := h.service.Dispatch(c.Request.Context(), middleware.Identity(c), &req)
	if err != nil {
		if errors.Is(err, notification.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized or missing user/group information"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}
