// Package api provides the REST client for the tutoring platform's chat
// endpoints: conversations, messages, contacts and session-room history.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tutorlink/chatkit/internal/models"
)

// Client is an HTTP JSON client for the chat backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client.
// If baseURL is empty, uses the CHATKIT_API_URL env var or defaults to
// localhost. Timeout can be configured via CHATKIT_HTTP_TIMEOUT (default 15s;
// every call here is interactive, not batch).
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("CHATKIT_API_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}

	timeout := 15 * time.Second
	if t := os.Getenv("CHATKIT_HTTP_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is the error envelope the backend returns on non-2xx responses.
type apiError struct {
	Message string `json:"message"`
}

// do sends one JSON request and decodes the response into result (which may
// be nil for endpoints without a useful body).
func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, apiErr.Message)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// MessagesPage is one page of a conversation's history, newest page first.
type MessagesPage struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
	Total    int              `json:"total"`
}

// Conversations lists all conversations for the authenticated user.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &convs); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Messages fetches one page of a conversation's history. Pages start at 1.
func (c *Client) Messages(ctx context.Context, conversationID string, page int) (MessagesPage, error) {
	var result MessagesPage
	path := fmt.Sprintf("/conversations/%s/messages?page=%d", conversationID, page)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return MessagesPage{}, fmt.Errorf("fetch messages: %w", err)
	}
	return result, nil
}

// OpenConversation creates, or retrieves if one already exists, the direct
// conversation with recipientID.
func (c *Client) OpenConversation(ctx context.Context, recipientID string) (models.Conversation, error) {
	var conv models.Conversation
	payload := map[string]string{"recipientId": recipientID}
	if err := c.do(ctx, http.MethodPost, "/conversations", payload, &conv); err != nil {
		return models.Conversation{}, fmt.Errorf("open conversation: %w", err)
	}
	return conv, nil
}

// SendMessage persists a message over HTTP. This is the delivery pipeline's
// fallback path when the socket is down; the returned message is confirmed.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (models.Message, error) {
	var msg models.Message
	payload := map[string]string{"text": text}
	path := fmt.Sprintf("/conversations/%s/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, payload, &msg); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// MarkRead marks every message in the conversation as read by the local
// user. The response body carries nothing the client needs.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/conversations/%s/read", conversationID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// Contacts lists the users the authenticated user may message.
func (c *Client) Contacts(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/contacts", nil, &users); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return users, nil
}

// Session fetches the metadata of one scheduled session.
func (c *Client) Session(ctx context.Context, sessionID string) (models.Session, error) {
	var sess models.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID, nil, &sess); err != nil {
		return models.Session{}, fmt.Errorf("fetch session: %w", err)
	}
	return sess, nil
}

// SessionHistory fetches the full session-room chat history.
func (c *Client) SessionHistory(ctx context.Context, sessionID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/chat", nil, &msgs); err != nil {
		return nil, fmt.Errorf("fetch session chat: %w", err)
	}
	return msgs, nil
}

// PostSessionMessage posts a message to the session room over HTTP and
// returns the confirmed message.
func (c *Client) PostSessionMessage(ctx context.Context, sessionID, text string) (models.Message, error) {
	var msg models.Message
	payload := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/chat", payload, &msg); err != nil {
		return models.Message{}, fmt.Errorf("post session message: %w", err)
	}
	return msg, nil
}
