// Package msgraph is the Microsoft Graph mail API adapter. It translates
// between Graph's wire representation and the local mail model, and maps
// Graph failures onto the service error taxonomy.
package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/apperr"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/config"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

const (
	defaultTimeout = 30 * time.Second
	defaultTop     = 50

	// Graph allows roughly 10k requests per 10 minutes; stay well under.
	requestsPerSecond = 10
	burstSize         = 15
)

// Client is a thin REST client for the Graph mail surface. Safe for
// concurrent use; all requests share one rate limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg config.GraphConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
	}
}

// Filters describes an OData message query. Zero values are omitted from
// the generated query string.
type Filters struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	SenderAddress string
	IsRead        *bool
	Importance    string
	Search        string
	Top           int
	SelectFields  []string
}

// MessagePage is one page of a message listing.
type MessagePage struct {
	Messages []model.MailMessage
	NextLink string
}

// DeltaResult is the outcome of a full delta sync walk: the changed
// messages plus the next cursor to persist.
type DeltaResult struct {
	Messages   []model.MailMessage
	DeltaToken string
}

// SendMailInput describes an outgoing message.
type SendMailInput struct {
	To              []string
	Cc              []string
	Bcc             []string
	Subject         string
	Body            string
	ContentType     string
	SaveToSentItems bool
}

// Subscription mirrors a Graph change-notification subscription.
type Subscription struct {
	ID              string
	Resource        string
	ChangeTypes     []string
	NotificationURL string
	ClientState     string
	ExpiresDateTime time.Time
}

// graphMessage is Graph's wire shape for a mail message.
type graphMessage struct {
	ID                string          `json:"id"`
	InternetMessageID string          `json:"internetMessageId"`
	Subject           string          `json:"subject"`
	BodyPreview       string          `json:"bodyPreview"`
	Body              *graphBody      `json:"body"`
	From              *graphRecipient `json:"from"`
	ToRecipients      []graphRecipient `json:"toRecipients"`
	CcRecipients      []graphRecipient `json:"ccRecipients"`
	BccRecipients     []graphRecipient `json:"bccRecipients"`
	ReceivedDateTime  string          `json:"receivedDateTime"`
	SentDateTime      string          `json:"sentDateTime"`
	IsRead            bool            `json:"isRead"`
	Importance        string          `json:"importance"`
	HasAttachments    bool            `json:"hasAttachments"`
	Categories        []string        `json:"categories"`
	Removed           *struct {
		Reason string `json:"reason"`
	} `json:"@removed,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessageList struct {
	Value     []graphMessage `json:"value"`
	NextLink  string         `json:"@odata.nextLink"`
	DeltaLink string         `json:"@odata.deltaLink"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ListMessages fetches one page of messages from the given folder.
func (c *Client) ListMessages(ctx context.Context, accessToken, folderID string, filters Filters) (*MessagePage, error) {
	if folderID == "" {
		folderID = "Inbox"
	}

	endpoint := fmt.Sprintf("%s/me/mailFolders/%s/messages?%s",
		c.baseURL, url.PathEscape(folderID), filters.queryString())

	var list graphMessageList
	if err := c.get(ctx, accessToken, endpoint, &list); err != nil {
		return nil, err
	}

	page := &MessagePage{NextLink: list.NextLink}
	for i := range list.Value {
		page.Messages = append(page.Messages, toMailMessage(&list.Value[i], folderID))
	}
	return page, nil
}

// DeltaMessages walks a delta query to completion. An empty deltaToken
// starts a fresh full sync; otherwise the walk resumes from the stored
// cursor. Intermediate nextLink pages are followed until the provider
// returns the next deltaLink.
func (c *Client) DeltaMessages(ctx context.Context, accessToken, folderID, deltaToken string) (*DeltaResult, error) {
	if folderID == "" {
		folderID = "Inbox"
	}

	endpoint := fmt.Sprintf("%s/me/mailFolders/%s/messages/delta", c.baseURL, url.PathEscape(folderID))
	if deltaToken != "" {
		endpoint += "?$deltatoken=" + url.QueryEscape(deltaToken)
	}

	result := &DeltaResult{}
	for {
		var list graphMessageList
		if err := c.get(ctx, accessToken, endpoint, &list); err != nil {
			return nil, err
		}

		for i := range list.Value {
			// Tombstones carry no payload worth storing.
			if list.Value[i].Removed != nil {
				continue
			}
			result.Messages = append(result.Messages, toMailMessage(&list.Value[i], folderID))
		}

		if list.DeltaLink != "" {
			token, err := extractDeltaToken(list.DeltaLink)
			if err != nil {
				return nil, err
			}
			result.DeltaToken = token
			return result, nil
		}
		if list.NextLink == "" {
			return nil, apperr.New(apperr.KindMail, apperr.CodeInvalidMailQuery,
				"delta response carried neither nextLink nor deltaLink")
		}
		endpoint = list.NextLink
	}
}

// SendMail submits a message for delivery. Graph acknowledges with 202 and
// returns no message identifier.
func (c *Client) SendMail(ctx context.Context, accessToken string, input SendMailInput) error {
	contentType := input.ContentType
	if contentType == "" {
		contentType = "HTML"
	}

	payload := map[string]any{
		"message": map[string]any{
			"subject": input.Subject,
			"body": map[string]any{
				"contentType": contentType,
				"content":     input.Body,
			},
			"toRecipients":  toGraphRecipients(input.To),
			"ccRecipients":  toGraphRecipients(input.Cc),
			"bccRecipients": toGraphRecipients(input.Bcc),
		},
		"saveToSentItems": input.SaveToSentItems,
	}

	endpoint := c.baseURL + "/me/sendMail"
	return c.do(ctx, http.MethodPost, accessToken, endpoint, payload, nil)
}

// CreateSubscription registers a change-notification subscription.
func (c *Client) CreateSubscription(ctx context.Context, accessToken string, sub Subscription) (*Subscription, error) {
	payload := map[string]any{
		"changeType":         strings.Join(sub.ChangeTypes, ","),
		"notificationUrl":    sub.NotificationURL,
		"resource":           sub.Resource,
		"expirationDateTime": sub.ExpiresDateTime.UTC().Format(time.RFC3339),
		"clientState":        sub.ClientState,
	}

	var resp struct {
		ID                 string `json:"id"`
		Resource           string `json:"resource"`
		ChangeType         string `json:"changeType"`
		NotificationURL    string `json:"notificationUrl"`
		ClientState        string `json:"clientState"`
		ExpirationDateTime string `json:"expirationDateTime"`
	}
	endpoint := c.baseURL + "/subscriptions"
	if err := c.do(ctx, http.MethodPost, accessToken, endpoint, payload, &resp); err != nil {
		return nil, err
	}

	expires, err := time.Parse(time.RFC3339, resp.ExpirationDateTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse subscription expiry: %w", err)
	}

	return &Subscription{
		ID:              resp.ID,
		Resource:        resp.Resource,
		ChangeTypes:     strings.Split(resp.ChangeType, ","),
		NotificationURL: resp.NotificationURL,
		ClientState:     resp.ClientState,
		ExpiresDateTime: expires,
	}, nil
}

// RenewSubscription extends a subscription's expiry and returns the expiry
// the provider actually granted.
func (c *Client) RenewSubscription(ctx context.Context, accessToken, subscriptionID string, expires time.Time) (time.Time, error) {
	payload := map[string]any{
		"expirationDateTime": expires.UTC().Format(time.RFC3339),
	}
	var resp struct {
		ExpirationDateTime string `json:"expirationDateTime"`
	}
	endpoint := c.baseURL + "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.do(ctx, http.MethodPatch, accessToken, endpoint, payload, &resp); err != nil {
		return time.Time{}, err
	}

	granted, err := time.Parse(time.RFC3339, resp.ExpirationDateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse renewed expiry: %w", err)
	}
	return granted, nil
}

// DeleteSubscription removes a subscription upstream.
func (c *Client) DeleteSubscription(ctx context.Context, accessToken, subscriptionID string) error {
	endpoint := c.baseURL + "/subscriptions/" + url.PathEscape(subscriptionID)
	return c.do(ctx, http.MethodDelete, accessToken, endpoint, nil, nil)
}

func (c *Client) get(ctx context.Context, accessToken, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, accessToken, endpoint, nil, out)
}

func (c *Client) do(ctx context.Context, method, accessToken, endpoint string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(err, apperr.KindExternalAPI, apperr.CodeExternalTimeout, "graph request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.translateStatus(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode graph response: %w", err)
		}
	}
	return nil
}

// translateStatus maps Graph error responses onto the taxonomy.
func (c *Client) translateStatus(resp *http.Response) error {
	var gErr graphError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(raw, &gErr)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperr.New(apperr.KindAuthentication, apperr.CodeTokenExpired,
			"graph rejected the access token: %s", gErr.Error.Message)
	case http.StatusNotFound:
		return apperr.New(apperr.KindMail, apperr.CodeMailNotFound,
			"graph resource not found: %s", gErr.Error.Message)
	case http.StatusGone:
		// Delta cursors age out server-side; the caller must resync.
		return apperr.New(apperr.KindMail, apperr.CodeDeltaLinkExpired,
			"delta token no longer valid: %s", gErr.Error.Message)
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return apperr.RateLimited(retryAfter)
	case http.StatusBadRequest:
		return apperr.New(apperr.KindMail, apperr.CodeInvalidMailQuery,
			"graph rejected the query (%s): %s", gErr.Error.Code, gErr.Error.Message)
	default:
		return apperr.New(apperr.KindExternalAPI, apperr.CodeExternalError,
			"graph returned status %d (%s): %s", resp.StatusCode, gErr.Error.Code, gErr.Error.Message)
	}
}

// queryString renders the filters as OData query parameters.
func (f Filters) queryString() string {
	q := url.Values{}

	var clauses []string
	if f.DateFrom != nil {
		clauses = append(clauses, fmt.Sprintf("receivedDateTime ge %s", f.DateFrom.UTC().Format(time.RFC3339)))
	}
	if f.DateTo != nil {
		clauses = append(clauses, fmt.Sprintf("receivedDateTime lt %s", f.DateTo.UTC().Format(time.RFC3339)))
	}
	if f.SenderAddress != "" {
		clauses = append(clauses, fmt.Sprintf("from/emailAddress/address eq '%s'", f.SenderAddress))
	}
	if f.IsRead != nil {
		clauses = append(clauses, fmt.Sprintf("isRead eq %t", *f.IsRead))
	}
	if f.Importance != "" {
		clauses = append(clauses, fmt.Sprintf("importance eq '%s'", f.Importance))
	}
	if len(clauses) > 0 {
		q.Set("$filter", strings.Join(clauses, " and "))
	}

	if f.Search != "" {
		q.Set("$search", fmt.Sprintf("%q", f.Search))
	} else {
		// $orderby cannot be combined with $search on this endpoint.
		q.Set("$orderby", "receivedDateTime desc")
	}

	top := f.Top
	if top <= 0 {
		top = defaultTop
	}
	q.Set("$top", strconv.Itoa(top))

	if len(f.SelectFields) > 0 {
		q.Set("$select", strings.Join(f.SelectFields, ","))
	}

	return q.Encode()
}

// extractDeltaToken pulls the $deltatoken parameter out of a deltaLink URL.
func extractDeltaToken(deltaLink string) (string, error) {
	parsed, err := url.Parse(deltaLink)
	if err != nil {
		return "", fmt.Errorf("failed to parse delta link: %w", err)
	}
	token := parsed.Query().Get("$deltatoken")
	if token == "" {
		return "", fmt.Errorf("delta link carries no $deltatoken parameter")
	}
	return token, nil
}

func toGraphRecipients(addresses []string) []map[string]any {
	out := make([]map[string]any, 0, len(addresses))
	for _, addr := range addresses {
		out = append(out, map[string]any{
			"emailAddress": map[string]any{"address": addr},
		})
	}
	return out
}

// toMailMessage converts a Graph wire message into the local model.
func toMailMessage(msg *graphMessage, folderName string) model.MailMessage {
	out := model.MailMessage{
		MessageID:         msg.ID,
		InternetMessageID: msg.InternetMessageID,
		Subject:           msg.Subject,
		BodyPreview:       msg.BodyPreview,
		IsRead:            msg.IsRead,
		HasAttachments:    msg.HasAttachments,
		Direction:         model.DirectionReceived,
		FolderName:        folderName,
		Categories:        msg.Categories,
	}

	if msg.Body != nil {
		out.BodyContent = msg.Body.Content
		out.BodyContentType = strings.ToLower(msg.Body.ContentType)
	}
	if msg.From != nil {
		out.SenderEmail = msg.From.EmailAddress.Address
		out.SenderName = msg.From.EmailAddress.Name
	}
	out.Recipients = recipientAddresses(msg.ToRecipients)
	out.CcRecipients = recipientAddresses(msg.CcRecipients)
	out.BccRecipients = recipientAddresses(msg.BccRecipients)

	switch strings.ToLower(msg.Importance) {
	case string(model.ImportanceLow):
		out.Importance = model.ImportanceLow
	case string(model.ImportanceHigh):
		out.Importance = model.ImportanceHigh
	default:
		out.Importance = model.ImportanceNormal
	}

	if t, err := time.Parse(time.RFC3339, msg.ReceivedDateTime); err == nil {
		out.ReceivedDateTime = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, msg.SentDateTime); err == nil {
		utc := t.UTC()
		out.SentDateTime = &utc
	}

	return out
}

func recipientAddresses(recipients []graphRecipient) []string {
	if len(recipients) == 0 {
		return nil
	}
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.EmailAddress.Address != "" {
			out = append(out, r.EmailAddress.Address)
		}
	}
	return out
}
