// Package handler is the thin gin layer over the services. Handlers bind
// and validate request DTOs, call one service operation and translate the
// error taxonomy into HTTP statuses.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/apperr"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/scheduler"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	auth      *service.AuthService
	mail      *service.MailService
	scheduler *scheduler.Scheduler
	db        *gorm.DB
	logger    *logrus.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(auth *service.AuthService, mail *service.MailService, sched *scheduler.Scheduler, db *gorm.DB, logger *logrus.Logger) *Handlers {
	return &Handlers{auth: auth, mail: mail, scheduler: sched, db: db, logger: logger}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		// Accounts and authentication
		api.POST("/accounts", h.RegisterAccount)
		api.GET("/accounts", h.ListAccounts)
		api.GET("/accounts/:id", h.GetAccount)
		api.DELETE("/accounts/:id", h.DeleteAccount)
		api.POST("/accounts/:id/authorize", h.BeginAuthorization)
		api.GET("/auth/callback", h.AuthorizationCallback)
		api.POST("/accounts/:id/device/start", h.BeginDeviceAuthorization)
		api.POST("/accounts/:id/device/poll", h.PollDeviceAuthorization)
		api.POST("/accounts/:id/token/refresh", h.RefreshToken)
		api.POST("/accounts/:id/logout", h.Logout)
		api.GET("/auth/logs", h.GetAuthLogs)

		// Mail
		api.POST("/accounts/:id/mail/query", h.QueryMail)
		api.POST("/mail/query-all", h.QueryAllMail)
		api.POST("/accounts/:id/mail/send", h.SendMail)
		api.POST("/accounts/:id/mail/sync", h.SyncDelta)
		api.GET("/accounts/:id/mail", h.ListMessages)
		api.GET("/mail/history", h.GetQueryHistory)

		// Webhooks
		api.POST("/accounts/:id/webhooks", h.CreateWebhook)
		api.GET("/accounts/:id/webhooks", h.ListWebhooks)
		api.POST("/webhooks/:subscriptionId/renew", h.RenewWebhook)
		api.DELETE("/webhooks/:subscriptionId", h.DeleteWebhook)

		// Scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunSchedulerOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}

	// Notification intake sits outside the API group; the provider calls it.
	router.POST("/webhook/notifications", h.ReceiveNotifications)
}

// writeError maps a taxonomy error to an HTTP response.
func (h *Handlers) writeError(c *gin.Context, err error) {
	appErr, ok := apperr.AsError(err)
	if !ok {
		h.logger.WithError(err).Error("Unclassified handler error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   apperr.CodeInternalError,
			Message: "internal error",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	status := statusForError(appErr)
	if appErr.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
	}
	c.JSON(status, ErrorResponse{
		Error:   appErr.Code,
		Message: appErr.Message,
		Code:    status,
	})
}

func statusForError(appErr *apperr.Error) int {
	switch appErr.Code {
	case apperr.CodeAccountNotFound, apperr.CodeMailNotFound, apperr.CodeWebhookNotFound:
		return http.StatusNotFound
	case apperr.CodeDuplicateAccount:
		return http.StatusConflict
	case apperr.CodeInvalidNotification:
		return http.StatusBadRequest
	case apperr.CodeExternalRateLimited:
		return http.StatusTooManyRequests
	}

	switch appErr.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindExternalAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) requestContext(c *gin.Context) service.RequestContext {
	return service.RequestContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
