package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/msgraph"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/service"
)

func filtersFromRequest(req MailQueryRequest) msgraph.Filters {
	return msgraph.Filters{
		DateFrom:      req.DateFrom,
		DateTo:        req.DateTo,
		SenderAddress: req.SenderAddress,
		IsRead:        req.IsRead,
		Importance:    req.Importance,
		Search:        req.Search,
		Top:           req.Top,
		SelectFields:  req.SelectFields,
	}
}

// QueryMail runs a filtered mail query for one account.
func (h *Handlers) QueryMail(c *gin.Context) {
	var req MailQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	result, err := h.mail.QueryMessages(c.Request.Context(), c.Param("id"), filtersFromRequest(req))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// QueryAllMail runs a filtered mail query across all active accounts.
func (h *Handlers) QueryAllMail(c *gin.Context) {
	var req MailQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	results, err := h.mail.QueryAllAccounts(c.Request.Context(), filtersFromRequest(req))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// SendMail submits an outgoing message for the account.
func (h *Handlers) SendMail(c *gin.Context) {
	var req SendMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	sent, err := h.mail.SendMessage(c.Request.Context(), c.Param("id"), service.SendMessageInput{
		To:          req.To,
		Cc:          req.Cc,
		Bcc:         req.Bcc,
		Subject:     req.Subject,
		Body:        req.Body,
		ContentType: req.ContentType,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, sent)
}

// SyncDelta runs an incremental sync for the account's folder.
func (h *Handlers) SyncDelta(c *gin.Context) {
	var req SyncDeltaRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	result, err := h.mail.SyncDelta(c.Request.Context(), c.Param("id"), req.FolderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMessages returns stored messages for the account with pagination.
func (h *Handlers) ListMessages(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	if limit > 1000 {
		limit = 1000
	}
	offset := queryInt(c, "offset", 0)

	messages, err := h.mail.ListMessages(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// GetQueryHistory returns the mail query audit trail, optionally filtered
// by account.
func (h *Handlers) GetQueryHistory(c *gin.Context) {
	history, err := h.mail.ListQueryHistory(c.Request.Context(), c.Query("account_id"), queryInt(c, "limit", 100))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
