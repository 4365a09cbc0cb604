package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/service"
)

// RegisterAccount creates a new account with its flow-specific record.
func (h *Handlers) RegisterAccount(c *gin.Context) {
	var req RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	account, err := h.auth.RegisterAccount(c.Request.Context(), service.RegisterAccountInput{
		Email:        req.Email,
		UserID:       req.UserID,
		TenantID:     req.TenantID,
		ClientID:     req.ClientID,
		Flow:         model.AuthenticationFlow(req.Flow),
		Scopes:       req.Scopes,
		ClientSecret: req.ClientSecret,
		RedirectURI:  req.RedirectURI,
		Authority:    req.Authority,
	}, h.requestContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// ListAccounts returns all registered accounts.
func (h *Handlers) ListAccounts(c *gin.Context) {
	accounts, err := h.auth.ListAccounts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// GetAccount returns a single account.
func (h *Handlers) GetAccount(c *gin.Context) {
	account, err := h.auth.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// DeleteAccount removes the account and everything it owns.
func (h *Handlers) DeleteAccount(c *gin.Context) {
	if err := h.auth.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BeginAuthorization returns the PKCE authorization URL for the account.
func (h *Handlers) BeginAuthorization(c *gin.Context) {
	session, err := h.auth.BeginAuthorization(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authorization_url": session.AuthorizationURL,
		"state":             session.State,
	})
}

// AuthorizationCallback redeems the provider redirect. The state parameter
// identifies the account that initiated the flow.
func (h *Handlers) AuthorizationCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   errParam,
			Message: c.Query("error_description"),
			Code:    http.StatusBadRequest,
		})
		return
	}

	account, err := h.auth.CompleteAuthorization(c.Request.Context(), c.Query("state"), c.Query("code"), h.requestContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": account.ID,
		"email":      account.Email,
		"status":     "authenticated",
	})
}

// BeginDeviceAuthorization starts the device code flow.
func (h *Handlers) BeginDeviceAuthorization(c *gin.Context) {
	auth, err := h.auth.BeginDeviceAuthorization(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, auth)
}

// PollDeviceAuthorization performs one poll of a pending device flow.
func (h *Handlers) PollDeviceAuthorization(c *gin.Context) {
	outcome, err := h.auth.PollDeviceAuthorization(c.Request.Context(), c.Param("id"), h.requestContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(outcome.Status)})
}

// RefreshToken forces a token refresh for the account.
func (h *Handlers) RefreshToken(c *gin.Context) {
	token, err := h.auth.RefreshToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": token.AccountID,
		"expires_at": token.ExpiresAt,
		"status":     string(token.Status),
	})
}

// Logout revokes upstream sessions and retires the local token.
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), c.Param("id"), h.requestContext(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// GetAuthLogs returns the authentication audit trail, optionally filtered
// by account.
func (h *Handlers) GetAuthLogs(c *gin.Context) {
	logs, err := h.auth.ListAuthLogs(c.Request.Context(), c.Query("account_id"), queryInt(c, "limit", 100))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
