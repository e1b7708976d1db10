// Package client implements the synchronization core of the support
// chat: a REST client for the ticket API plus the poll loop, message
// composer, typing debouncer, status controller, and unread tracker
// that keep a viewer's state eventually consistent with the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"
)

/*
|--------------------------------------------------------------------------
| WIRE TYPES
|--------------------------------------------------------------------------
| Mirrors of the server's JSON shapes. A Snapshot is always the full
| state of a ticket's conversation; the client never merges, it
| replaces.
*/

type Ticket struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Subject    string    `json:"subject"`
	Category   string    `json:"category"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Message struct {
	ID             int64     `json:"id"`
	TicketID       int64     `json:"ticket_id"`
	SenderRole     Role      `json:"sender_role"`
	Message        string    `json:"message"`
	Attachment     *string   `json:"attachment,omitempty"`
	AttachmentType *string   `json:"attachment_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Typing struct {
	User  bool `json:"user"`
	Admin bool `json:"admin"`
}

type Snapshot struct {
	Messages []Message `json:"messages"`
	Typing   Typing    `json:"typing"`
}

type User struct {
	ID            int64  `json:"id"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	Role          Role   `json:"role"`
}

type LoginResult struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}

// APIError is a server-reported logical error: the request completed
// but the payload carried an error field.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

/*
|--------------------------------------------------------------------------
| CLIENT
|--------------------------------------------------------------------------
*/

// Client talks to the support API. Safe for concurrent use; the token
// is guarded because the poll loop and UI handlers share one instance.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for an API base URL such as
// "http://localhost:4000/api".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
	}
}

// SetHTTPClient swaps the underlying transport (tests, custom timeouts).
func (c *Client) SetHTTPClient(httpc *http.Client) {
	c.httpc = httpc
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// FileBaseURL derives the file-serving origin from an API base URL by
// stripping the trailing "/api" path segment. Attachment paths returned
// by the server ("/public/uploads/...") are appended to this origin.
func FileBaseURL(apiBase string) string {
	trimmed := strings.TrimRight(apiBase, "/")
	if strings.HasSuffix(trimmed, "/api") {
		return strings.TrimSuffix(trimmed, "/api")
	}
	return trimmed
}

// AttachmentURL resolves a server-relative attachment path to a full URL.
func (c *Client) AttachmentURL(path string) string {
	return FileBaseURL(c.baseURL) + path
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// The server reports logical errors as {"error": "..."} with a
	// non-2xx status.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			message = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", out)
}

/*
|--------------------------------------------------------------------------
| AUTH
|--------------------------------------------------------------------------
*/

// Login authenticates with account name + account id (account number or
// CCA number) and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, accountName, accountID string) (*LoginResult, error) {
	body := map[string]string{
		"accountName": accountName,
		"accountId":   accountID,
	}
	var result LoginResult
	if err := c.postJSON(ctx, "/auth/login", body, &result); err != nil {
		return nil, err
	}
	c.SetToken(result.Token)
	return &result, nil
}

func (c *Client) Register(ctx context.Context, accountName, accountNumber, ccaNumber string) (*User, error) {
	body := map[string]string{
		"accountName":   accountName,
		"accountNumber": accountNumber,
		"ccaNumber":     ccaNumber,
	}
	var result struct {
		User User `json:"user"`
	}
	if err := c.postJSON(ctx, "/auth/register", body, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var result struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, "", &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

/*
|--------------------------------------------------------------------------
| TICKETS
|--------------------------------------------------------------------------
*/

func (c *Client) CreateTicket(ctx context.Context, subject, category string) (*Ticket, error) {
	body := map[string]string{"subject": subject, "category": category}
	var result struct {
		Ticket Ticket `json:"ticket"`
	}
	if err := c.postJSON(ctx, "/tickets", body, &result); err != nil {
		return nil, err
	}
	return &result.Ticket, nil
}

func (c *Client) MyTickets(ctx context.Context) ([]Ticket, error) {
	var result struct {
		Tickets []Ticket `json:"tickets"`
	}
	if err := c.do(ctx, http.MethodGet, "/tickets/my", nil, "", &result); err != nil {
		return nil, err
	}
	return result.Tickets, nil
}

func (c *Client) AdminTickets(ctx context.Context) ([]Ticket, error) {
	var result struct {
		Tickets []Ticket `json:"tickets"`
	}
	if err := c.do(ctx, http.MethodGet, "/tickets/admin", nil, "", &result); err != nil {
		return nil, err
	}
	return result.Tickets, nil
}

func (c *Client) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	var result struct {
		Ticket Ticket `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, "", &result); err != nil {
		return nil, err
	}
	return &result.Ticket, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id int64, status string) (*Ticket, error) {
	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return nil, err
	}
	var result struct {
		Ticket Ticket `json:"ticket"`
	}
	err = c.do(ctx, http.MethodPatch, fmt.Sprintf("/tickets/admin/%d", id), bytes.NewReader(payload), "application/json", &result)
	if err != nil {
		return nil, err
	}
	return &result.Ticket, nil
}

// DeleteTicket issues the raw delete request. Callers must gate on
// CanDeleteStatus first; StatusController.Delete does exactly that.
func (c *Client) DeleteTicket(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tickets/admin/%d", id), nil, "", nil)
}

/*
|--------------------------------------------------------------------------
| MESSAGES & TYPING
|--------------------------------------------------------------------------
*/

// Messages fetches the authoritative message + typing snapshot for a
// ticket in one call.
func (c *Client) Messages(ctx context.Context, ticketID int64) (*Snapshot, error) {
	var snapshot Snapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d/messages", ticketID), nil, "", &snapshot); err != nil {
		return nil, err
	}
	if snapshot.Messages == nil {
		snapshot.Messages = []Message{}
	}
	return &snapshot, nil
}

// SendText sends a text-only message as a JSON request.
func (c *Client) SendText(ctx context.Context, ticketID int64, text string) (*Message, error) {
	var result struct {
		Data Message `json:"data"`
	}
	err := c.postJSON(ctx, fmt.Sprintf("/tickets/%d/messages", ticketID), map[string]string{"message": text}, &result)
	if err != nil {
		return nil, err
	}
	return &result.Data, nil
}

// Attachment is a staged file for a message send.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SendWithAttachment sends optional text plus exactly one attachment as
// a single multipart request: one server operation, one message row.
func (c *Client) SendWithAttachment(ctx context.Context, ticketID int64, text string, attachment Attachment) (*Message, error) {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)

	if text != "" {
		if err := writer.WriteField("message", text); err != nil {
			return nil, err
		}
	}

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename="%s"`, attachment.Filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(attachment.Data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var result struct {
		Data Message `json:"data"`
	}
	err = c.do(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/messages", ticketID), &buffer, writer.FormDataContentType(), &result)
	if err != nil {
		return nil, err
	}
	return &result.Data, nil
}

// SetTyping raises or clears the caller's own typing flag. The path is
// role-specific, matching the server's role scoping.
func (c *Client) SetTyping(ctx context.Context, ticketID int64, role Role, typing bool) error {
	path := fmt.Sprintf("/tickets/%d/typing/%s", ticketID, role.TypingFlag())
	return c.postJSON(ctx, path, map[string]bool{"typing": typing}, nil)
}
