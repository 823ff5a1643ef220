package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// EmptyHistoryError is the persistence API's answer for a chat with no turns.
const EmptyHistoryError = "Chat doesn't exist or has no messages"

// HistoryMessage is a {role, content} pair as the inference process takes it
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of the streaming chat call
type ChatRequest struct {
	Message string               `json:"message"`
	Model   []ModelConfiguration `json:"model"`
	ChatID  string               `json:"chat_id"`
}

// SessionStatus is the answer of session-check
type SessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// Profile is the signed-in user's profile
type Profile struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	UserID   string `json:"userid,omitempty"`
}

// Credentials are the login form fields
type Credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// flexibleID decodes an identifier sent either as a string or a number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

func chatPath(prefix, chatID string) string {
	return prefix + url.PathEscape(chatID) + "/"
}

// CreateChat allocates a new chat for the given model set.
func (c *Client) CreateChat(ctx context.Context, models []ModelConfiguration) (ChatSummary, error) {
	var resp struct {
		ChatID   flexibleID `json:"chat_id"`
		ChatName string     `json:"chat_name"`
	}
	err := c.do(ctx, request{
		op:      "create-chat",
		backend: backendAPI,
		method:  http.MethodPost,
		path:    "chats/create-chat/",
		body:    map[string]interface{}{"model": models},
	}, &resp)
	if err != nil {
		return ChatSummary{}, err
	}
	if resp.ChatID == "" {
		return ChatSummary{}, &TransportError{Op: "create-chat", URL: c.resolve(backendAPI, "chats/create-chat/"), Err: fmt.Errorf("response carried no chat_id")}
	}
	return ChatSummary{ID: string(resp.ChatID), Title: resp.ChatName}, nil
}

// SwitchChat tells the inference process which chat's context to hold.
func (c *Client) SwitchChat(ctx context.Context, chatID string) error {
	return c.do(ctx, request{
		op:      "switch-chat",
		backend: backendInference,
		method:  http.MethodPost,
		path:    "switch-chat",
		body:    map[string]string{"chat_id": chatID},
	}, nil)
}

// SendChatHistory seeds the inference process with a chat's turns.
func (c *Client) SendChatHistory(ctx context.Context, messages []HistoryMessage) error {
	if messages == nil {
		messages = []HistoryMessage{}
	}
	return c.do(ctx, request{
		op:      "send-chat-history",
		backend: backendInference,
		method:  http.MethodPost,
		path:    "send-chat-history",
		body:    map[string]interface{}{"messages": messages},
	}, nil)
}

// StreamChat starts a multi-model turn. The caller must close the returned
// body; cancelling ctx aborts the read.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	return c.openStream(ctx, request{
		op:      "chat",
		backend: backendInference,
		method:  http.MethodPost,
		path:    "chat",
		body:    req,
	})
}

// GetChatHistory fetches a chat's persisted turns in order. A chat with no
// turns yields an empty slice.
func (c *Client) GetChatHistory(ctx context.Context, chatID string) ([]HistoryEntry, error) {
	var raw json.RawMessage
	path := chatPath("chats/get-chat-history/", chatID)
	if err := c.do(ctx, request{
		op:      "get-chat-history",
		backend: backendAPI,
		method:  http.MethodGet,
		path:    path,
	}, &raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []HistoryEntry{}, nil
	}

	if raw[0] == '{' {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, &ParseError{Source: "history", Key: chatID, Err: err}
		}
		if e.Error == EmptyHistoryError || e.Error == "" {
			return []HistoryEntry{}, nil
		}
		return nil, &TransportError{Op: "get-chat-history", URL: c.resolve(backendAPI, path), Status: http.StatusOK, Err: fmt.Errorf("%s", e.Error)}
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &ParseError{Source: "history", Key: chatID, Err: err}
	}
	return entries, nil
}

// SaveChat persists one turn.
func (c *Client) SaveChat(ctx context.Context, chatID string, msg Message) error {
	return c.do(ctx, request{
		op:      "save-chat",
		backend: backendAPI,
		method:  http.MethodPost,
		path:    "chats/save-chat/",
		body: map[string]interface{}{
			"chat_id":    chatID,
			"message":    HistoryMessage{Role: string(msg.Role), Content: msg.Content},
			"message_id": msg.ID,
		},
	}, nil)
}

// GetChatName asks the inference process for a title summarizing message.
func (c *Client) GetChatName(ctx context.Context, message string) (string, error) {
	var resp struct {
		ChatName string `json:"chat_name"`
	}
	if err := c.do(ctx, request{
		op:      "get-chat-name",
		backend: backendInference,
		method:  http.MethodPost,
		path:    "get-chat-name",
		body:    map[string]string{"message": message},
	}, &resp); err != nil {
		return "", err
	}
	return resp.ChatName, nil
}

// SaveChatName persists a chat title.
func (c *Client) SaveChatName(ctx context.Context, chatID, name string) error {
	return c.do(ctx, request{
		op:      "save-chat-name",
		backend: backendAPI,
		method:  http.MethodPut,
		path:    chatPath("chats/save-chat-name/", chatID),
		body:    map[string]string{"chat_name": name},
	}, nil)
}

// ValidateJSON submits a structured template for server-side validation.
func (c *Client) ValidateJSON(ctx context.Context, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return &ParseError{Source: "template", Key: "validate-json", Err: fmt.Errorf("document is not valid JSON")}
	}
	return c.do(ctx, request{
		op:      "validate-json",
		backend: backendAPI,
		method:  http.MethodPost,
		path:    "chats/validate-json/",
		body:    doc,
	}, nil)
}

// ListChats returns the user's chats. The API answers with bare ids or with
// {chat_id, chat_name} objects.
func (c *Client) ListChats(ctx context.Context) ([]ChatSummary, error) {
	var raw []json.RawMessage
	if err := c.do(ctx, request{
		op:      "get-chat-ids",
		backend: backendAPI,
		method:  http.MethodGet,
		path:    "chats/get-chat-ids/",
	}, &raw); err != nil {
		return nil, err
	}

	chats := make([]ChatSummary, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			var obj struct {
				ChatID   flexibleID `json:"chat_id"`
				ChatName string     `json:"chat_name"`
			}
			if err := json.Unmarshal(item, &obj); err != nil || obj.ChatID == "" {
				LogWarn("Skipping chat list entry %d: %s", i, truncate(string(item), 80))
				continue
			}
			chats = append(chats, ChatSummary{ID: string(obj.ChatID), Title: obj.ChatName})
			continue
		}
		var id flexibleID
		if err := json.Unmarshal(item, &id); err != nil || id == "" {
			LogWarn("Skipping chat list entry %d: %s", i, truncate(string(item), 80))
			continue
		}
		chats = append(chats, ChatSummary{ID: string(id)})
	}
	return chats, nil
}

// DeleteChat removes a chat and its turns.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, request{
		op:      "delete-chat",
		backend: backendAPI,
		method:  http.MethodDelete,
		path:    chatPath("chats/delete-chat/", chatID),
	}, nil)
}

// FetchCSRF asks the API for a CSRF token. The API also sets it as a cookie.
func (c *Client) FetchCSRF(ctx context.Context) (string, error) {
	var resp struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.do(ctx, request{
		op:      "csrf",
		backend: backendAPI,
		method:  http.MethodGet,
		path:    "users/csrf/",
	}, &resp); err != nil {
		return "", err
	}
	return resp.CSRFToken, nil
}

// Login opens an authenticated session. The session cookie lands in the jar.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	return c.do(ctx, request{
		op:      "login",
		backend: backendAPI,
		method:  http.MethodPost,
		path:    "users/login/",
		body:    creds,
	}, nil)
}

// Logout closes the session and forgets the cached CSRF token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{
		op:      "logout",
		backend: backendAPI,
		method:  http.MethodPost,
		path:    "users/logout/",
	}, nil)

	c.csrfMu.Lock()
	c.csrfToken = ""
	c.csrfMu.Unlock()
	return err
}

// SessionCheck reports whether the jar holds a live session. A 401 answer is
// an unauthenticated status, not an error.
func (c *Client) SessionCheck(ctx context.Context) (SessionStatus, error) {
	var status SessionStatus
	err := c.do(ctx, request{
		op:      "session-check",
		backend: backendAPI,
		method:  http.MethodGet,
		path:    "users/session-check/",
	}, &status)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.Status == http.StatusUnauthorized {
			return SessionStatus{}, nil
		}
		return SessionStatus{}, err
	}
	return status, nil
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var raw struct {
		Name     string          `json:"name"`
		Username string          `json:"username"`
		UserID   json.RawMessage `json:"userid"`
	}
	if err := c.do(ctx, request{
		op:      "profile",
		backend: backendAPI,
		method:  http.MethodGet,
		path:    "users/profile/",
	}, &raw); err != nil {
		return Profile{}, err
	}

	p := Profile{Name: raw.Name, Username: raw.Username}
	if len(raw.UserID) > 0 && string(raw.UserID) != "null" {
		var id flexibleID
		if err := json.Unmarshal(raw.UserID, &id); err == nil {
			p.UserID = string(id)
		}
	}
	return p, nil
}
