// Package client is the Go rendition of the chat widget: it posts one user
// message at a time to the relay and turns the outcome into display text.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"gemini-relay/internal/models"
)

const (
	PendingText        = "Gemini sta scrivendo..."
	ServerErrorPrefix  = "Errore dal server proxy: "
	ConnectionFailText = "Errore di connessione al server proxy. Controlla la console per i dettagli."

	defaultTimeout = 90 * time.Second
)

var (
	// ErrBlankMessage is returned for input that is empty after trimming.
	ErrBlankMessage = errors.New("blank message")
	// ErrSuperseded is returned by a Send that was replaced by a newer one.
	ErrSuperseded = errors.New("superseded by a newer message")
)

// ServerError is a non-2xx answer from the relay.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// ConnectionError means the relay could not be reached or answered with
// something unreadable.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "relay unreachable: " + e.Err.Error() }

func (e *ConnectionError) Unwrap() error { return e.Err }

type Client struct {
	endpoint    string
	sessionsURL string
	httpClient  *http.Client
	logger      *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	current   uint64
	sessionID string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithSessionID resumes an existing conversation.
func WithSessionID(id string) Option {
	return func(cl *Client) { cl.sessionID = id }
}

// New returns a client for the relay at baseURL (for example
// "http://localhost:3000").
func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	c := &Client{
		endpoint:    base + "/api/chat",
		sessionsURL: base + "/api/sessions",
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the conversation id assigned by the relay, if any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Send posts message and waits for the reply text. Only one call is in
// flight at a time: starting a new Send cancels the previous one, which then
// returns ErrSuperseded.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrBlankMessage
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.current++
	slot := c.current
	c.cancel = cancel
	sessionID := c.sessionID
	c.mu.Unlock()

	defer c.release(slot)

	text, newSessionID, err := c.post(ctx, models.ChatRequest{Prompt: message, SessionID: sessionID})
	if c.superseded(slot) {
		return "", ErrSuperseded
	}
	if err != nil {
		return "", err
	}

	if newSessionID != "" {
		c.mu.Lock()
		c.sessionID = newSessionID
		c.mu.Unlock()
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, body models.ChatRequest) (string, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &ConnectionError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody models.ErrorResponse
		_ = json.Unmarshal(raw, &errBody)
		return "", "", &ServerError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	var out models.ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", "", &ConnectionError{Err: fmt.Errorf("decode reply: %w", err)}
	}
	return out.Text, out.SessionID, nil
}

// EndSession asks the relay to drop the history of sessionID.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.sessionsURL+"/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		var errBody models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &ServerError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	c.mu.Lock()
	if c.sessionID == sessionID {
		c.sessionID = ""
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) superseded(slot uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != slot
}

func (c *Client) release(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == slot {
		c.cancel = nil
	}
}

// Render maps the outcome of Send to the text the widget shows. ok is false
// when nothing should be shown (blank input or a superseded call).
func (c *Client) Render(text string, err error) (display string, ok bool) {
	var serverErr *ServerError
	var connErr *ConnectionError

	switch {
	case err == nil:
		return text, true
	case errors.Is(err, ErrBlankMessage), errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
		return "", false
	case errors.As(err, &serverErr):
		return ServerErrorPrefix + serverErr.Error(), true
	case errors.As(err, &connErr):
		c.logger.Error("relay request failed", "error", connErr.Err)
		return ConnectionFailText, true
	default:
		c.logger.Error("relay request failed", "error", err)
		return ConnectionFailText, true
	}
}
