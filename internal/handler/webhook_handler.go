package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/service"
)

// CreateWebhook registers a change-notification subscription for the
// account.
func (h *Handlers) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	sub, err := h.mail.CreateWebhook(c.Request.Context(), c.Param("id"), req.NotificationURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// ListWebhooks returns the account's active subscriptions.
func (h *Handlers) ListWebhooks(c *gin.Context) {
	subs, err := h.mail.ListWebhooks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// RenewWebhook extends a subscription's expiry.
func (h *Handlers) RenewWebhook(c *gin.Context) {
	sub, err := h.mail.RenewWebhook(c.Request.Context(), c.Param("subscriptionId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// DeleteWebhook removes a subscription upstream and locally.
func (h *Handlers) DeleteWebhook(c *gin.Context) {
	if err := h.mail.DeleteWebhook(c.Request.Context(), c.Param("subscriptionId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// notificationBatch is the provider's change-notification envelope.
type notificationBatch struct {
	Value []service.Notification `json:"value"`
}

// ReceiveNotifications is the notification intake endpoint. A subscription
// validation handshake carries a validationToken query parameter and must
// be echoed back as plain text. Notification batches are validated
// fail-closed: a batch with a client-state mismatch is answered with an
// invalid-notification error, a clean batch with 202 before the triggered
// syncs complete.
func (h *Handlers) ReceiveNotifications(c *gin.Context) {
	if token := c.Query("validationToken"); token != "" {
		c.String(http.StatusOK, token)
		return
	}

	var batch notificationBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid notification payload",
			Code:    http.StatusBadRequest,
		})
		return
	}

	outcome, err := h.mail.HandleNotifications(c.Request.Context(), batch.Value)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, outcome)
}
