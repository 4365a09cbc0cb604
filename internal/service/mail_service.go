package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/apperr"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/metrics"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/msgraph"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/repository"
)

const (
	defaultFolder = "Inbox"

	// Graph caps mail subscriptions at 4230 minutes.
	subscriptionTTL = 4230 * time.Minute

	queryTypeManual  = "manual"
	queryTypeDelta   = "delta"
	queryTypeWebhook = "webhook"
)

// TokenSource supplies a currently usable access token for an account.
// AuthService implements it.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context, accountID string) (string, error)
}

// QueryResult reports one mail query.
type QueryResult struct {
	AccountID     string              `json:"account_id"`
	MessagesFound int                 `json:"messages_found"`
	NewMessages   int                 `json:"new_messages"`
	Messages      []model.MailMessage `json:"messages"`
}

// AccountQueryResult is one account's slice of an all-accounts query.
// Skipped holds the reason when the account could not be queried.
type AccountQueryResult struct {
	AccountID string       `json:"account_id"`
	Email     string       `json:"email"`
	Skipped   string       `json:"skipped,omitempty"`
	Result    *QueryResult `json:"result,omitempty"`
}

// SendMessageInput describes an outgoing message.
type SendMessageInput struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	ContentType string
}

// DeltaSyncResult reports one incremental sync.
type DeltaSyncResult struct {
	AccountID     string `json:"account_id"`
	FolderID      string `json:"folder_id"`
	MessagesFound int    `json:"messages_found"`
	NewMessages   int    `json:"new_messages"`
	FullSync      bool   `json:"full_sync"`
}

// Notification is one entry of a change-notification batch.
type Notification struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	Resource       string `json:"resource"`
	ChangeType     string `json:"changeType"`
}

// NotificationOutcome summarizes a processed notification batch.
type NotificationOutcome struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// MailService owns mail collection, delivery, incremental sync, webhook
// lifecycle and forwarding to the external API.
type MailService struct {
	tokens     TokenSource
	accounts   AccountStore
	mail       MailStore
	deltaLinks DeltaLinkStore
	webhooks   WebhookStore
	logs       LogStore
	calls      ExternalCallStore
	graph      GraphMailAPI
	forwarder  MailForwarder
	maxRetries int
	metrics    *metrics.Metrics
	logger     *logrus.Logger
}

func NewMailService(
	tokens TokenSource,
	accounts AccountStore,
	mail MailStore,
	deltaLinks DeltaLinkStore,
	webhooks WebhookStore,
	logs LogStore,
	calls ExternalCallStore,
	graph GraphMailAPI,
	fwd MailForwarder,
	maxRetries int,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *MailService {
	return &MailService{
		tokens:     tokens,
		accounts:   accounts,
		mail:       mail,
		deltaLinks: deltaLinks,
		webhooks:   webhooks,
		logs:       logs,
		calls:      calls,
		graph:      graph,
		forwarder:  fwd,
		maxRetries: maxRetries,
		metrics:    m,
		logger:     logger,
	}
}

// QueryMessages runs a filtered query for one account, stores new messages
// and forwards them. Every invocation leaves exactly one history row,
// successful or not.
func (s *MailService) QueryMessages(ctx context.Context, accountID string, filters msgraph.Filters) (*QueryResult, error) {
	started := time.Now()
	params := filterParams(filters)

	accessToken, err := s.tokens.EnsureAccessToken(ctx, accountID)
	if err != nil {
		s.recordHistory(ctx, accountID, queryTypeManual, params, 0, 0, started, err)
		return nil, err
	}

	page, err := s.graph.ListMessages(ctx, accessToken, defaultFolder, filters)
	if err != nil {
		s.recordHistory(ctx, accountID, queryTypeManual, params, 0, 0, started, err)
		return nil, err
	}

	newCount, err := s.storeAndForward(ctx, accountID, page.Messages)
	if err != nil {
		s.recordHistory(ctx, accountID, queryTypeManual, params, len(page.Messages), newCount, started, err)
		return nil, err
	}

	s.recordHistory(ctx, accountID, queryTypeManual, params, len(page.Messages), newCount, started, nil)
	if s.metrics != nil {
		s.metrics.MailQueries.WithLabelValues(queryTypeManual).Inc()
		s.metrics.QueryDuration.Observe(time.Since(started).Seconds())
	}

	return &QueryResult{
		AccountID:     accountID,
		MessagesFound: len(page.Messages),
		NewMessages:   newCount,
		Messages:      page.Messages,
	}, nil
}

// QueryAllAccounts runs the query across every active account. Accounts
// with no usable token are skipped with a warning instead of failing the
// batch.
func (s *MailService) QueryAllAccounts(ctx context.Context, filters msgraph.Filters) ([]AccountQueryResult, error) {
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return nil, apperr.Database(err, "list active accounts")
	}

	results := make([]AccountQueryResult, 0, len(accounts))
	for _, account := range accounts {
		entry := AccountQueryResult{AccountID: account.ID, Email: account.Email}

		if _, err := s.tokens.EnsureAccessToken(ctx, account.ID); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"account_id": account.ID,
				"email":      account.Email,
			}).Warn("Skipping account without usable token")
			entry.Skipped = err.Error()
			results = append(results, entry)
			continue
		}

		result, err := s.QueryMessages(ctx, account.ID, filters)
		if err != nil {
			entry.Skipped = err.Error()
			results = append(results, entry)
			continue
		}
		entry.Result = result
		results = append(results, entry)
	}
	return results, nil
}

// SendMessage submits a message and stores a local copy. The provider
// acknowledges sends without a message identifier, so the stored copy gets
// a locally generated one.
func (s *MailService) SendMessage(ctx context.Context, accountID string, input SendMessageInput) (*model.MailMessage, error) {
	if len(input.To) == 0 {
		return nil, apperr.Invalid("at least one recipient is required")
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, accountID)
	if err != nil {
		return nil, err
	}

	err = s.graph.SendMail(ctx, accessToken, msgraph.SendMailInput{
		To:              input.To,
		Cc:              input.Cc,
		Bcc:             input.Bcc,
		Subject:         input.Subject,
		Body:            input.Body,
		ContentType:     input.ContentType,
		SaveToSentItems: true,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindMail, apperr.CodeMailSendFailed, "failed to send message")
	}

	now := time.Now().UTC()
	sent := &model.MailMessage{
		AccountID:        accountID,
		MessageID:        "sent-" + uuid.New().String(),
		Subject:          input.Subject,
		Recipients:       input.To,
		CcRecipients:     input.Cc,
		BccRecipients:    input.Bcc,
		BodyContent:      input.Body,
		BodyContentType:  input.ContentType,
		Importance:       model.ImportanceNormal,
		Direction:        model.DirectionSent,
		FolderName:       "SentItems",
		SentDateTime:     &now,
		ReceivedDateTime: now,
	}
	if _, err := s.mail.SaveIfNew(ctx, sent); err != nil {
		// The message already left; a bookkeeping failure must not report
		// the send as failed.
		s.logger.WithError(err).WithField("account_id", accountID).Error("Failed to store sent message copy")
	}

	s.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"recipients": len(input.To),
	}).Info("Message sent")

	return sent, nil
}

// SyncDelta runs an incremental sync for the account's folder. The first
// sync (no active cursor) seeds the baseline; an expired cursor triggers
// one automatic full resync.
func (s *MailService) SyncDelta(ctx context.Context, accountID, folderID string) (*DeltaSyncResult, error) {
	return s.syncDelta(ctx, accountID, folderID, queryTypeDelta)
}

func (s *MailService) syncDelta(ctx context.Context, accountID, folderID, queryType string) (*DeltaSyncResult, error) {
	if folderID == "" {
		folderID = defaultFolder
	}
	started := time.Now()
	params := map[string]any{"folder_id": folderID}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, accountID)
	if err != nil {
		s.recordHistory(ctx, accountID, queryType, params, 0, 0, started, err)
		return nil, err
	}

	deltaToken := ""
	link, err := s.deltaLinks.GetActive(ctx, accountID, folderID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Database(err, "get delta link")
	}
	if link != nil {
		deltaToken = link.DeltaToken
	}

	fullSync := deltaToken == ""
	result, err := s.graph.DeltaMessages(ctx, accessToken, folderID, deltaToken)
	if err != nil && apperr.IsCode(err, apperr.CodeDeltaLinkExpired) && deltaToken != "" {
		s.logger.WithField("account_id", accountID).Warn("Delta cursor expired, resyncing from scratch")
		if err := s.deltaLinks.DeactivateForAccount(ctx, accountID, folderID); err != nil {
			return nil, apperr.Database(err, "deactivate delta links")
		}
		fullSync = true
		result, err = s.graph.DeltaMessages(ctx, accessToken, folderID, "")
	}
	if err != nil {
		s.recordHistory(ctx, accountID, queryType, params, 0, 0, started, err)
		return nil, err
	}

	newCount, err := s.storeAndForward(ctx, accountID, result.Messages)
	if err != nil {
		s.recordHistory(ctx, accountID, queryType, params, len(result.Messages), newCount, started, err)
		return nil, err
	}

	if err := s.deltaLinks.Rotate(ctx, accountID, folderID, result.DeltaToken); err != nil {
		return nil, apperr.Database(err, "rotate delta link")
	}

	s.recordHistory(ctx, accountID, queryType, params, len(result.Messages), newCount, started, nil)
	if s.metrics != nil {
		s.metrics.MailQueries.WithLabelValues(queryType).Inc()
	}

	s.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"folder_id":  folderID,
		"found":      len(result.Messages),
		"new":        newCount,
		"full_sync":  fullSync,
	}).Info("Delta sync completed")

	return &DeltaSyncResult{
		AccountID:     accountID,
		FolderID:      folderID,
		MessagesFound: len(result.Messages),
		NewMessages:   newCount,
		FullSync:      fullSync,
	}, nil
}

// ListMessages returns stored messages for the account.
func (s *MailService) ListMessages(ctx context.Context, accountID string, limit, offset int) ([]model.MailMessage, error) {
	messages, err := s.mail.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, apperr.Database(err, "list messages")
	}
	return messages, nil
}

func (s *MailService) ListQueryHistory(ctx context.Context, accountID string, limit int) ([]model.MailQueryHistory, error) {
	history, err := s.logs.ListQueryHistory(ctx, accountID, limit)
	if err != nil {
		return nil, apperr.Database(err, "list query history")
	}
	return history, nil
}

// CreateWebhook registers a change-notification subscription with a fresh
// random client state and persists the mirror row.
func (s *MailService) CreateWebhook(ctx context.Context, accountID, notificationURL string) (*model.WebhookSubscription, error) {
	if notificationURL == "" {
		return nil, apperr.Invalid("notification_url is required")
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, accountID)
	if err != nil {
		return nil, err
	}

	clientState := uuid.New().String()
	created, err := s.graph.CreateSubscription(ctx, accessToken, msgraph.Subscription{
		Resource:        "/me/mailFolders('Inbox')/messages",
		ChangeTypes:     []string{"created"},
		NotificationURL: notificationURL,
		ClientState:     clientState,
		ExpiresDateTime: time.Now().UTC().Add(subscriptionTTL),
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindMail, apperr.CodeWebhookFailed, "failed to create subscription")
	}

	sub := &model.WebhookSubscription{
		SubscriptionID:  created.ID,
		AccountID:       accountID,
		Resource:        created.Resource,
		ChangeTypes:     created.ChangeTypes,
		NotificationURL: created.NotificationURL,
		ClientState:     clientState,
		ExpiresDateTime: created.ExpiresDateTime,
		IsActive:        true,
	}
	if err := s.webhooks.Create(ctx, sub); err != nil {
		return nil, apperr.Database(err, "create webhook subscription")
	}

	if s.metrics != nil {
		s.metrics.ActiveWebhooks.Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"account_id":      accountID,
		"subscription_id": created.ID,
	}).Info("Webhook subscription created")

	return sub, nil
}

// RenewWebhook extends a subscription's expiry upstream and mirrors the
// granted expiry locally.
func (s *MailService) RenewWebhook(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
	sub, err := s.getWebhook(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, sub.AccountID)
	if err != nil {
		return nil, err
	}

	granted, err := s.graph.RenewSubscription(ctx, accessToken, subscriptionID, time.Now().UTC().Add(subscriptionTTL))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindMail, apperr.CodeWebhookFailed, "failed to renew subscription")
	}

	if err := s.webhooks.UpdateExpiry(ctx, subscriptionID, granted); err != nil {
		return nil, apperr.Database(err, "update webhook expiry")
	}
	sub.ExpiresDateTime = granted

	if s.metrics != nil {
		s.metrics.WebhookRenewals.Inc()
	}
	return sub, nil
}

// DeleteWebhook removes the subscription upstream and deactivates the
// mirror row. An already-gone upstream subscription still deactivates
// locally.
func (s *MailService) DeleteWebhook(ctx context.Context, subscriptionID string) error {
	sub, err := s.getWebhook(ctx, subscriptionID)
	if err != nil {
		return err
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, sub.AccountID)
	if err != nil {
		return err
	}

	if err := s.graph.DeleteSubscription(ctx, accessToken, subscriptionID); err != nil {
		if !apperr.IsCode(err, apperr.CodeMailNotFound) {
			return apperr.Wrap(err, apperr.KindMail, apperr.CodeWebhookFailed, "failed to delete subscription")
		}
	}

	if err := s.webhooks.Deactivate(ctx, subscriptionID); err != nil {
		return apperr.Database(err, "deactivate webhook subscription")
	}
	if s.metrics != nil {
		s.metrics.ActiveWebhooks.Dec()
	}
	return nil
}

func (s *MailService) ListWebhooks(ctx context.Context, accountID string) ([]model.WebhookSubscription, error) {
	subs, err := s.webhooks.ListActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.Database(err, "list webhook subscriptions")
	}
	return subs, nil
}

// HandleNotifications validates a change-notification batch. The client
// state check is fail-closed: a notification whose state does not match the
// stored subscription is rejected and triggers nothing, and the batch is
// answered with an invalid-notification error once the remaining entries
// have been processed. Valid notifications kick off an asynchronous delta
// sync for the subscribed account.
func (s *MailService) HandleNotifications(ctx context.Context, notifications []Notification) (*NotificationOutcome, error) {
	outcome := &NotificationOutcome{}
	var invalid *apperr.Error

	for _, n := range notifications {
		sub, err := s.webhooks.GetBySubscriptionID(ctx, n.SubscriptionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.logger.WithField("subscription_id", n.SubscriptionID).Warn("Notification for unknown subscription")
				outcome.Rejected++
				continue
			}
			return nil, apperr.Database(err, "get webhook subscription")
		}

		if !sub.IsActive || sub.ClientState != n.ClientState {
			s.logger.WithField("subscription_id", n.SubscriptionID).Warn("Notification failed client state validation")
			outcome.Rejected++
			if invalid == nil {
				invalid = apperr.InvalidWebhookNotification(n.SubscriptionID)
			}
			continue
		}

		outcome.Accepted++
		accountID := sub.AccountID
		go func() {
			// The notification intake must answer fast; the sync runs on
			// its own context.
			syncCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := s.syncDelta(syncCtx, accountID, defaultFolder, queryTypeWebhook); err != nil {
				s.logger.WithError(err).WithField("account_id", accountID).Error("Webhook-triggered sync failed")
			}
		}()
	}

	if invalid != nil {
		return outcome, invalid
	}
	return outcome, nil
}

// RenewExpiringWebhooks renews every active subscription expiring within
// the window. Per-subscription failures are skipped.
func (s *MailService) RenewExpiringWebhooks(ctx context.Context, window time.Duration) (int, error) {
	subs, err := s.webhooks.ListExpiringWithin(ctx, window)
	if err != nil {
		return 0, apperr.Database(err, "list expiring webhook subscriptions")
	}

	renewed := 0
	for _, sub := range subs {
		if _, err := s.RenewWebhook(ctx, sub.SubscriptionID); err != nil {
			s.logger.WithError(err).WithField("subscription_id", sub.SubscriptionID).Warn("Scheduled webhook renewal failed")
			continue
		}
		renewed++
	}
	return renewed, nil
}

// RetryFailedCalls redispatches failed external API calls that have retries
// left. Each attempt bumps the retry counter regardless of outcome, so a
// call is abandoned once the ceiling is hit.
func (s *MailService) RetryFailedCalls(ctx context.Context) (int, error) {
	calls, err := s.calls.ListRetryable(ctx, s.maxRetries)
	if err != nil {
		return 0, apperr.Database(err, "list retryable calls")
	}

	succeeded := 0
	for _, call := range calls {
		if err := s.calls.IncrementRetry(ctx, call.ID); err != nil {
			s.logger.WithError(err).WithField("call_id", call.ID).Warn("Failed to bump retry counter")
			continue
		}

		result, err := s.forwarder.Deliver(ctx, call.RequestPayload)
		if err != nil {
			s.recordCallResult(ctx, call.ID, 0, err.Error(), false)
			continue
		}
		s.recordCallResult(ctx, call.ID, result.StatusCode, result.Body, result.Success)
		if result.Success {
			succeeded++
		}
	}

	if len(calls) > 0 {
		s.logger.WithFields(logrus.Fields{
			"attempted": len(calls),
			"succeeded": succeeded,
		}).Info("Retried failed external API calls")
	}
	return succeeded, nil
}

// CleanupOldHistory ages out audit rows past the retention period.
func (s *MailService) CleanupOldHistory(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := s.logs.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, apperr.Database(err, "cleanup history")
	}
	return removed, nil
}

// CleanupInactiveWebhooks ages out deactivated subscriptions and superseded
// delta cursors.
func (s *MailService) CleanupInactiveWebhooks(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	removedSubs, err := s.webhooks.DeleteInactiveOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperr.Database(err, "cleanup webhook subscriptions")
	}
	removedLinks, err := s.deltaLinks.DeleteInactiveOlderThan(ctx, cutoff)
	if err != nil {
		return removedSubs, apperr.Database(err, "cleanup delta links")
	}
	return removedSubs + removedLinks, nil
}

func (s *MailService) getWebhook(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
	sub, err := s.webhooks.GetBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.WebhookNotFound(subscriptionID)
		}
		return nil, apperr.Database(err, "get webhook subscription")
	}
	return sub, nil
}

// storeAndForward saves messages with dedup and forwards the new ones.
// Forwarding failures are recorded in the ledger but never fail the sync.
func (s *MailService) storeAndForward(ctx context.Context, accountID string, messages []model.MailMessage) (int, error) {
	newCount := 0
	for i := range messages {
		messages[i].AccountID = accountID
		saved, err := s.mail.SaveIfNew(ctx, &messages[i])
		if err != nil {
			return newCount, apperr.Database(err, "save message")
		}
		if !saved {
			continue
		}
		newCount++
		if s.metrics != nil {
			s.metrics.MessagesSaved.Inc()
		}
		s.forwardMessage(ctx, &messages[i])
	}
	return newCount, nil
}

// forwardMessage delivers one stored message downstream. A pending ledger
// row exists before the request goes out, so a crash mid-flight is visible
// and retryable.
func (s *MailService) forwardMessage(ctx context.Context, msg *model.MailMessage) {
	if s.forwarder == nil || s.forwarder.EndpointURL() == "" {
		return
	}

	payload := map[string]any{
		"account_id":          msg.AccountID,
		"message_id":          msg.MessageID,
		"internet_message_id": msg.InternetMessageID,
		"subject":             msg.Subject,
		"sender_email":        msg.SenderEmail,
		"sender_name":         msg.SenderName,
		"recipients":          msg.Recipients,
		"body_preview":        msg.BodyPreview,
		"importance":          string(msg.Importance),
		"has_attachments":     msg.HasAttachments,
		"received_datetime":   msg.ReceivedDateTime.Format(time.RFC3339),
		"folder_name":         msg.FolderName,
	}

	call := &model.ExternalAPICall{
		AccountID:      msg.AccountID,
		MessageID:      msg.MessageID,
		EndpointURL:    s.forwarder.EndpointURL(),
		HTTPMethod:     "POST",
		RequestPayload: payload,
	}
	if err := s.calls.Create(ctx, call); err != nil {
		s.logger.WithError(err).WithField("message_id", msg.MessageID).Error("Failed to record external API call")
		return
	}

	result, err := s.forwarder.Deliver(ctx, payload)
	if err != nil {
		s.recordCallResult(ctx, call.ID, 0, err.Error(), false)
		return
	}
	s.recordCallResult(ctx, call.ID, result.StatusCode, result.Body, result.Success)
}

func (s *MailService) recordCallResult(ctx context.Context, callID uint, status int, body string, success bool) {
	if err := s.calls.RecordResult(ctx, callID, status, body, success); err != nil {
		s.logger.WithError(err).WithField("call_id", callID).Error("Failed to record external API result")
	}
	if s.metrics != nil {
		if success {
			s.metrics.ForwardSuccesses.Inc()
		} else {
			s.metrics.ForwardFailures.Inc()
		}
	}
}

func (s *MailService) recordHistory(ctx context.Context, accountID, queryType string, params map[string]any, found, saved int, started time.Time, cause error) {
	entry := &model.MailQueryHistory{
		AccountID:       accountID,
		QueryType:       queryType,
		QueryParameters: params,
		MessagesFound:   found,
		NewMessages:     saved,
		QueryDateTime:   started.UTC(),
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		Success:         cause == nil,
	}
	if cause != nil {
		entry.ErrorMessage = cause.Error()
	}
	if err := s.logs.CreateQueryHistory(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("account_id", accountID).Error("Failed to write query history")
	}
}

func filterParams(filters msgraph.Filters) map[string]any {
	params := map[string]any{}
	if filters.DateFrom != nil {
		params["date_from"] = filters.DateFrom.UTC().Format(time.RFC3339)
	}
	if filters.DateTo != nil {
		params["date_to"] = filters.DateTo.UTC().Format(time.RFC3339)
	}
	if filters.SenderAddress != "" {
		params["sender_address"] = filters.SenderAddress
	}
	if filters.IsRead != nil {
		params["is_read"] = *filters.IsRead
	}
	if filters.Importance != "" {
		params["importance"] = filters.Importance
	}
	if filters.Search != "" {
		params["search"] = filters.Search
	}
	if filters.Top > 0 {
		params["top"] = filters.Top
	}
	return params
}
