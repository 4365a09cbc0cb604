package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/apperr"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/forwarder"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/msgraph"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/repository"
)

type mailServiceMocks struct {
	tokens     *mockTokenSource
	accounts   *mockAccountStore
	mail       *mockMailStore
	deltaLinks *mockDeltaLinkStore
	webhooks   *mockWebhookStore
	logs       *mockLogStore
	calls      *mockExternalCallStore
	graph      *mockGraphAPI
	forwarder  *mockForwarder
}

func newMailService(m mailServiceMocks) *MailService {
	if m.tokens == nil {
		m.tokens = &mockTokenSource{}
	}
	if m.accounts == nil {
		m.accounts = &mockAccountStore{}
	}
	if m.mail == nil {
		m.mail = &mockMailStore{}
	}
	if m.deltaLinks == nil {
		m.deltaLinks = &mockDeltaLinkStore{}
	}
	if m.webhooks == nil {
		m.webhooks = &mockWebhookStore{}
	}
	if m.logs == nil {
		m.logs = &mockLogStore{}
	}
	if m.calls == nil {
		m.calls = &mockExternalCallStore{}
	}
	if m.graph == nil {
		m.graph = &mockGraphAPI{}
	}
	if m.forwarder == nil {
		m.forwarder = &mockForwarder{}
	}
	return NewMailService(m.tokens, m.accounts, m.mail, m.deltaLinks, m.webhooks, m.logs, m.calls, m.graph, m.forwarder, 5, nil, testLogger())
}

func inboxMessage(messageID string) model.MailMessage {
	return model.MailMessage{
		MessageID:        messageID,
		Subject:          "subject " + messageID,
		SenderEmail:      "sender@example.com",
		Direction:        model.DirectionReceived,
		FolderName:       "Inbox",
		ReceivedDateTime: time.Now().UTC(),
	}
}

func TestQueryMessagesDedupAndHistory(t *testing.T) {
	var history []*model.MailQueryHistory
	var delivered int

	mail := &mockMailStore{
		saveIfNewFunc: func(ctx context.Context, msg *model.MailMessage) (bool, error) {
			// msg-2 was stored by an earlier query.
			return msg.MessageID != "msg-2", nil
		},
	}
	logs := &mockLogStore{
		createQueryHistoryFunc: func(ctx context.Context, h *model.MailQueryHistory) error {
			history = append(history, h)
			return nil
		},
	}
	graph := &mockGraphAPI{
		listMessagesFunc: func(ctx context.Context, accessToken, folderID string, filters msgraph.Filters) (*msgraph.MessagePage, error) {
			assert.Equal(t, "access-token", accessToken)
			assert.Equal(t, "Inbox", folderID)
			return &msgraph.MessagePage{Messages: []model.MailMessage{inboxMessage("msg-1"), inboxMessage("msg-2")}}, nil
		},
	}
	fwd := &mockForwarder{
		deliverFunc: func(ctx context.Context, payload map[string]any) (*forwarder.Result, error) {
			delivered++
			return &forwarder.Result{StatusCode: 200, Success: true}, nil
		},
	}
	svc := newMailService(mailServiceMocks{mail: mail, logs: logs, graph: graph, forwarder: fwd})

	result, err := svc.QueryMessages(context.Background(), "acc-1", msgraph.Filters{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.MessagesFound)
	assert.Equal(t, 1, result.NewMessages)

	// Only the new message goes downstream.
	assert.Equal(t, 1, delivered)

	require.Len(t, history, 1)
	assert.Equal(t, "manual", history[0].QueryType)
	assert.Equal(t, 2, history[0].MessagesFound)
	assert.Equal(t, 1, history[0].NewMessages)
	assert.True(t, history[0].Success)
}

func TestQueryMessagesNoTokenStillRecordsHistory(t *testing.T) {
	var history []*model.MailQueryHistory

	tokens := &mockTokenSource{
		ensureFunc: func(ctx context.Context, accountID string) (string, error) {
			return "", apperr.NoValidToken(accountID)
		},
	}
	logs := &mockLogStore{
		createQueryHistoryFunc: func(ctx context.Context, h *model.MailQueryHistory) error {
			history = append(history, h)
			return nil
		},
	}
	svc := newMailService(mailServiceMocks{tokens: tokens, logs: logs})

	_, err := svc.QueryMessages(context.Background(), "acc-1", msgraph.Filters{})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeNoValidToken))

	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.NotEmpty(t, history[0].ErrorMessage)
}

func TestQueryAllAccountsSkipsStaleAccounts(t *testing.T) {
	accounts := &mockAccountStore{
		listActiveFunc: func(ctx context.Context) ([]model.Account, error) {
			return []model.Account{
				{ID: "acc-1", Email: "one@example.com"},
				{ID: "acc-2", Email: "two@example.com"},
			}, nil
		},
	}
	tokens := &mockTokenSource{
		ensureFunc: func(ctx context.Context, accountID string) (string, error) {
			if accountID == "acc-1" {
				return "", apperr.NoValidToken(accountID)
			}
			return "access-token", nil
		},
	}
	graph := &mockGraphAPI{
		listMessagesFunc: func(ctx context.Context, accessToken, folderID string, filters msgraph.Filters) (*msgraph.MessagePage, error) {
			return &msgraph.MessagePage{Messages: []model.MailMessage{inboxMessage("msg-1")}}, nil
		},
	}
	svc := newMailService(mailServiceMocks{accounts: accounts, tokens: tokens, graph: graph})

	results, err := svc.QueryAllAccounts(context.Background(), msgraph.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "acc-1", results[0].AccountID)
	assert.NotEmpty(t, results[0].Skipped)
	assert.Nil(t, results[0].Result)

	assert.Equal(t, "acc-2", results[1].AccountID)
	assert.Empty(t, results[1].Skipped)
	require.NotNil(t, results[1].Result)
	assert.Equal(t, 1, results[1].Result.MessagesFound)
}

func TestSendMessageRequiresRecipient(t *testing.T) {
	svc := newMailService(mailServiceMocks{})

	_, err := svc.SendMessage(context.Background(), "acc-1", SendMessageInput{Subject: "hi"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSendMessageStoresSentCopy(t *testing.T) {
	var sent msgraph.SendMailInput
	var stored *model.MailMessage

	graph := &mockGraphAPI{
		sendMailFunc: func(ctx context.Context, accessToken string, input msgraph.SendMailInput) error {
			sent = input
			return nil
		},
	}
	mail := &mockMailStore{
		saveIfNewFunc: func(ctx context.Context, msg *model.MailMessage) (bool, error) {
			stored = msg
			return true, nil
		},
	}
	svc := newMailService(mailServiceMocks{graph: graph, mail: mail})

	msg, err := svc.SendMessage(context.Background(), "acc-1", SendMessageInput{
		To:          []string{"dest@example.com"},
		Subject:     "status report",
		Body:        "all green",
		ContentType: "Text",
	})
	require.NoError(t, err)

	assert.True(t, sent.SaveToSentItems)
	assert.Equal(t, []string{"dest@example.com"}, sent.To)

	require.NotNil(t, stored)
	assert.Equal(t, model.DirectionSent, stored.Direction)
	assert.Equal(t, "SentItems", stored.FolderName)
	assert.True(t, strings.HasPrefix(stored.MessageID, "sent-"))
	assert.Equal(t, stored.MessageID, msg.MessageID)
}

func TestSendMessageFailureWrapsCode(t *testing.T) {
	graph := &mockGraphAPI{
		sendMailFunc: func(ctx context.Context, accessToken string, input msgraph.SendMailInput) error {
			return apperr.New(apperr.KindExternalAPI, apperr.CodeExternalError, "upstream 502")
		},
	}
	svc := newMailService(mailServiceMocks{graph: graph})

	_, err := svc.SendMessage(context.Background(), "acc-1", SendMessageInput{To: []string{"dest@example.com"}})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeMailSendFailed))
}

func TestSyncDeltaRotatesCursor(t *testing.T) {
	var rotatedToken string
	var usedCursor string

	deltaLinks := &mockDeltaLinkStore{
		getActiveFunc: func(ctx context.Context, accountID, folderID string) (*model.DeltaLink, error) {
			return &model.DeltaLink{AccountID: accountID, FolderID: folderID, DeltaToken: "cursor-0", IsActive: true}, nil
		},
		rotateFunc: func(ctx context.Context, accountID, folderID, deltaToken string) error {
			rotatedToken = deltaToken
			return nil
		},
	}
	graph := &mockGraphAPI{
		deltaMessagesFunc: func(ctx context.Context, accessToken, folderID, deltaToken string) (*msgraph.DeltaResult, error) {
			usedCursor = deltaToken
			return &msgraph.DeltaResult{
				Messages:   []model.MailMessage{inboxMessage("msg-1")},
				DeltaToken: "cursor-1",
			}, nil
		},
	}
	svc := newMailService(mailServiceMocks{deltaLinks: deltaLinks, graph: graph})

	result, err := svc.SyncDelta(context.Background(), "acc-1", "")
	require.NoError(t, err)

	assert.Equal(t, "cursor-0", usedCursor)
	assert.Equal(t, "cursor-1", rotatedToken)
	assert.Equal(t, "Inbox", result.FolderID)
	assert.Equal(t, 1, result.NewMessages)
	assert.False(t, result.FullSync)
}

func TestSyncDeltaExpiredCursorResyncsFromScratch(t *testing.T) {
	var deactivated bool
	var cursors []string

	deltaLinks := &mockDeltaLinkStore{
		getActiveFunc: func(ctx context.Context, accountID, folderID string) (*model.DeltaLink, error) {
			return &model.DeltaLink{AccountID: accountID, FolderID: folderID, DeltaToken: "stale-cursor", IsActive: true}, nil
		},
		deactivateFunc: func(ctx context.Context, accountID, folderID string) error {
			deactivated = true
			return nil
		},
	}
	graph := &mockGraphAPI{
		deltaMessagesFunc: func(ctx context.Context, accessToken, folderID, deltaToken string) (*msgraph.DeltaResult, error) {
			cursors = append(cursors, deltaToken)
			if deltaToken != "" {
				return nil, apperr.New(apperr.KindMail, apperr.CodeDeltaLinkExpired, "delta cursor no longer valid")
			}
			return &msgraph.DeltaResult{
				Messages:   []model.MailMessage{inboxMessage("msg-1"), inboxMessage("msg-2")},
				DeltaToken: "fresh-cursor",
			}, nil
		},
	}
	svc := newMailService(mailServiceMocks{deltaLinks: deltaLinks, graph: graph})

	result, err := svc.SyncDelta(context.Background(), "acc-1", "Inbox")
	require.NoError(t, err)

	assert.Equal(t, []string{"stale-cursor", ""}, cursors)
	assert.True(t, deactivated)
	assert.True(t, result.FullSync)
	assert.Equal(t, 2, result.MessagesFound)
}

func TestCreateWebhookGeneratesClientState(t *testing.T) {
	var upstream msgraph.Subscription
	var stored *model.WebhookSubscription

	graph := &mockGraphAPI{
		createSubscriptionFunc: func(ctx context.Context, accessToken string, sub msgraph.Subscription) (*msgraph.Subscription, error) {
			upstream = sub
			out := sub
			out.ID = "sub-1"
			return &out, nil
		},
	}
	webhooks := &mockWebhookStore{
		createFunc: func(ctx context.Context, sub *model.WebhookSubscription) error {
			stored = sub
			return nil
		},
	}
	svc := newMailService(mailServiceMocks{graph: graph, webhooks: webhooks})

	sub, err := svc.CreateWebhook(context.Background(), "acc-1", "https://gateway.example.com/webhook")
	require.NoError(t, err)

	assert.Equal(t, "/me/mailFolders('Inbox')/messages", upstream.Resource)
	assert.Equal(t, []string{"created"}, upstream.ChangeTypes)
	assert.NotEmpty(t, upstream.ClientState)
	assert.WithinDuration(t, time.Now().UTC().Add(4230*time.Minute), upstream.ExpiresDateTime, time.Minute)

	require.NotNil(t, stored)
	assert.Equal(t, "sub-1", stored.SubscriptionID)
	assert.Equal(t, upstream.ClientState, stored.ClientState)
	assert.True(t, stored.IsActive)
	assert.Equal(t, stored.SubscriptionID, sub.SubscriptionID)
}

func TestRenewWebhookMirrorsGrantedExpiry(t *testing.T) {
	granted := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	var updatedExpiry time.Time

	webhooks := &mockWebhookStore{
		getBySubscriptionIDFunc: func(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
			return &model.WebhookSubscription{SubscriptionID: subscriptionID, AccountID: "acc-1", IsActive: true}, nil
		},
		updateExpiryFunc: func(ctx context.Context, subscriptionID string, expires time.Time) error {
			updatedExpiry = expires
			return nil
		},
	}
	graph := &mockGraphAPI{
		renewSubscriptionFunc: func(ctx context.Context, accessToken, subscriptionID string, expires time.Time) (time.Time, error) {
			// The provider may grant less than requested.
			return granted, nil
		},
	}
	svc := newMailService(mailServiceMocks{webhooks: webhooks, graph: graph})

	sub, err := svc.RenewWebhook(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, granted, updatedExpiry)
	assert.Equal(t, granted, sub.ExpiresDateTime)
}

func TestDeleteWebhookToleratesUpstreamGone(t *testing.T) {
	var deactivated bool

	webhooks := &mockWebhookStore{
		getBySubscriptionIDFunc: func(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
			return &model.WebhookSubscription{SubscriptionID: subscriptionID, AccountID: "acc-1", IsActive: true}, nil
		},
		deactivateFunc: func(ctx context.Context, subscriptionID string) error {
			deactivated = true
			return nil
		},
	}
	graph := &mockGraphAPI{
		deleteSubscriptionFunc: func(ctx context.Context, accessToken, subscriptionID string) error {
			return apperr.New(apperr.KindMail, apperr.CodeMailNotFound, "subscription not found")
		},
	}
	svc := newMailService(mailServiceMocks{webhooks: webhooks, graph: graph})

	err := svc.DeleteWebhook(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, deactivated)
}

func TestHandleNotificationsFailClosed(t *testing.T) {
	synced := make(chan string, 2)

	webhooks := &mockWebhookStore{
		getBySubscriptionIDFunc: func(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
			switch subscriptionID {
			case "sub-valid":
				return &model.WebhookSubscription{SubscriptionID: subscriptionID, AccountID: "acc-1", ClientState: "secret-state", IsActive: true}, nil
			case "sub-inactive":
				return &model.WebhookSubscription{SubscriptionID: subscriptionID, AccountID: "acc-2", ClientState: "secret-state", IsActive: false}, nil
			default:
				return nil, repository.ErrNotFound
			}
		},
	}
	graph := &mockGraphAPI{
		deltaMessagesFunc: func(ctx context.Context, accessToken, folderID, deltaToken string) (*msgraph.DeltaResult, error) {
			synced <- folderID
			return &msgraph.DeltaResult{DeltaToken: "next"}, nil
		},
	}
	svc := newMailService(mailServiceMocks{webhooks: webhooks, graph: graph})

	outcome, err := svc.HandleNotifications(context.Background(), []Notification{
		{SubscriptionID: "sub-unknown", ClientState: "secret-state"},
		{SubscriptionID: "sub-inactive", ClientState: "secret-state"},
		{SubscriptionID: "sub-valid", ClientState: "wrong-state"},
		{SubscriptionID: "sub-valid", ClientState: "secret-state"},
	})

	// A batch containing a client-state mismatch is answered with the
	// invalid-notification error; valid entries are still processed.
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidNotification))
	require.NotNil(t, outcome)
	assert.Equal(t, 1, outcome.Accepted)
	assert.Equal(t, 3, outcome.Rejected)

	// The accepted notification triggers exactly one async sync.
	select {
	case folder := <-synced:
		assert.Equal(t, "Inbox", folder)
	case <-time.After(2 * time.Second):
		t.Fatal("expected webhook-triggered sync")
	}
	select {
	case <-synced:
		t.Fatal("rejected notifications must not trigger syncs")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleNotificationsMismatchReturnsInvalidNotification(t *testing.T) {
	webhooks := &mockWebhookStore{
		getBySubscriptionIDFunc: func(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
			return &model.WebhookSubscription{SubscriptionID: subscriptionID, AccountID: "acc-1", ClientState: "secret-state", IsActive: true}, nil
		},
	}
	svc := newMailService(mailServiceMocks{webhooks: webhooks})

	outcome, err := svc.HandleNotifications(context.Background(), []Notification{
		{SubscriptionID: "sub-1", ClientState: "tampered"},
	})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidNotification))
	require.NotNil(t, outcome)
	assert.Equal(t, 0, outcome.Accepted)
	assert.Equal(t, 1, outcome.Rejected)
}

func TestForwardFailureRecordsCallAndKeepsMessage(t *testing.T) {
	var call *model.ExternalAPICall
	var recordedStatus int
	var recordedSuccess bool

	calls := &mockExternalCallStore{
		createFunc: func(ctx context.Context, c *model.ExternalAPICall) error {
			c.ID = 7
			call = c
			return nil
		},
		recordResultFunc: func(ctx context.Context, id uint, status int, body string, success bool) error {
			assert.Equal(t, uint(7), id)
			recordedStatus = status
			recordedSuccess = success
			return nil
		},
	}
	fwd := &mockForwarder{
		deliverFunc: func(ctx context.Context, payload map[string]any) (*forwarder.Result, error) {
			return &forwarder.Result{StatusCode: 503, Body: "unavailable", Success: false}, nil
		},
	}
	graph := &mockGraphAPI{
		listMessagesFunc: func(ctx context.Context, accessToken, folderID string, filters msgraph.Filters) (*msgraph.MessagePage, error) {
			return &msgraph.MessagePage{Messages: []model.MailMessage{inboxMessage("msg-1")}}, nil
		},
	}
	svc := newMailService(mailServiceMocks{calls: calls, forwarder: fwd, graph: graph})

	result, err := svc.QueryMessages(context.Background(), "acc-1", msgraph.Filters{})
	require.NoError(t, err)

	// The delivery failure is ledger-only; the message stays stored.
	assert.Equal(t, 1, result.NewMessages)
	require.NotNil(t, call)
	assert.Equal(t, "msg-1", call.MessageID)
	assert.Equal(t, "POST", call.HTTPMethod)
	assert.Equal(t, 503, recordedStatus)
	assert.False(t, recordedSuccess)
}

func TestRetryFailedCallsStopsAtCeiling(t *testing.T) {
	var listedMax int
	var bumped []uint

	calls := &mockExternalCallStore{
		listRetryableFunc: func(ctx context.Context, maxRetries int) ([]model.ExternalAPICall, error) {
			listedMax = maxRetries
			return []model.ExternalAPICall{
				{ID: 1, RequestPayload: map[string]any{"message_id": "msg-1"}},
				{ID: 2, RequestPayload: map[string]any{"message_id": "msg-2"}},
			}, nil
		},
		incrementRetryFunc: func(ctx context.Context, id uint) error {
			bumped = append(bumped, id)
			return nil
		},
	}
	attempt := 0
	fwd := &mockForwarder{
		deliverFunc: func(ctx context.Context, payload map[string]any) (*forwarder.Result, error) {
			attempt++
			if attempt == 1 {
				return &forwarder.Result{StatusCode: 200, Success: true}, nil
			}
			return &forwarder.Result{StatusCode: 500, Success: false}, nil
		},
	}
	svc := newMailService(mailServiceMocks{calls: calls, forwarder: fwd})

	succeeded, err := svc.RetryFailedCalls(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, listedMax)
	// Every attempt consumes a retry, even the failed one.
	assert.Equal(t, []uint{1, 2}, bumped)
	assert.Equal(t, 1, succeeded)
}

func TestRenewExpiringWebhooksSkipsFailures(t *testing.T) {
	webhooks := &mockWebhookStore{
		listExpiringFunc: func(ctx context.Context, window time.Duration) ([]model.WebhookSubscription, error) {
			return []model.WebhookSubscription{
				{SubscriptionID: "sub-1", AccountID: "acc-1", IsActive: true},
				{SubscriptionID: "sub-2", AccountID: "acc-2", IsActive: true},
			}, nil
		},
		getBySubscriptionIDFunc: func(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
			return &model.WebhookSubscription{SubscriptionID: subscriptionID, AccountID: "acc-1", IsActive: true}, nil
		},
	}
	graph := &mockGraphAPI{
		renewSubscriptionFunc: func(ctx context.Context, accessToken, subscriptionID string, expires time.Time) (time.Time, error) {
			if subscriptionID == "sub-1" {
				return time.Time{}, apperr.New(apperr.KindExternalAPI, apperr.CodeExternalError, "upstream 502")
			}
			return expires, nil
		},
	}
	svc := newMailService(mailServiceMocks{webhooks: webhooks, graph: graph})

	renewed, err := svc.RenewExpiringWebhooks(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
}
