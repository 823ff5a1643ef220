package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Turn is one persisted chat message as the fake API stores it
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	MessageID string `json:"message_id"`
}

// Call records one request the fake served
type Call struct {
	Method string
	Path   string
	Body   []byte
	CSRF   string
}

// FakeBackend serves both the persistence API (under /api/) and the
// inference process (at the root) from one httptest server.
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	calls     []Call
	chats     map[string][]Turn
	names     map[string]string
	order     []string
	nextChat  int
	history   map[string][]HistoryMessage
	activeID  string
	failures  map[string]int
	stream    []string
	chatName  string
	users     map[string]string
	loggedIn  string
	gate      chan struct{}
	gatePath  string
	requireCS bool

	// StringMessages makes get-chat-history return each message as a JSON string.
	StringMessages bool
}

// HistoryMessage is a {role, content} pair sent to send-chat-history
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"
	csrfValue     = "test-csrf-token"
)

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		chats:    make(map[string][]Turn),
		names:    make(map[string]string),
		history:  make(map[string][]HistoryMessage),
		failures: make(map[string]int),
		users:    map[string]string{"alice": "secret"},
		chatName: "Generated Title",
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// APIBaseURL is the persistence API root
func (f *FakeBackend) APIBaseURL() string {
	return f.Server.URL + "/api"
}

// InferenceBaseURL is the inference process root
func (f *FakeBackend) InferenceBaseURL() string {
	return f.Server.URL
}

// SetStream sets the NDJSON lines the chat endpoint answers with. Each line
// is written and flushed separately.
func (f *FakeBackend) SetStream(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stream = append([]string(nil), lines...)
}

// SetChatName sets the title get-chat-name returns.
func (f *FakeBackend) SetChatName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatName = name
}

// Fail makes every request to path answer with status.
func (f *FakeBackend) Fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = status
}

// RequireCSRF makes unsafe API requests without the CSRF header fail with 403.
func (f *FakeBackend) RequireCSRF() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requireCS = true
}

// Gate blocks requests whose path starts with prefix until the returned
// function is called.
func (f *FakeBackend) Gate(prefix string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gate = ch
	f.gatePath = prefix
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// SeedChat stores a chat with the given turns.
func (f *FakeBackend) SeedChat(id, name string, turns ...Turn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[id]; !ok {
		f.order = append(f.order, id)
	}
	f.chats[id] = append([]Turn(nil), turns...)
	f.names[id] = name
}

// Turns returns the persisted turns of a chat.
func (f *FakeBackend) Turns(id string) []Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Turn(nil), f.chats[id]...)
}

// ChatName returns a chat's persisted title.
func (f *FakeBackend) ChatName(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names[id]
}

// ChatIDs returns the chats in creation order.
func (f *FakeBackend) ChatIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// LoadedHistory returns what send-chat-history last received for the active chat.
func (f *FakeBackend) LoadedHistory() (string, []HistoryMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeID, append([]HistoryMessage(nil), f.history[f.activeID]...)
}

// Calls returns every request served so far.
func (f *FakeBackend) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CountCalls counts requests to path.
func (f *FakeBackend) CountCalls(method, path string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: r.Method, Path: r.URL.Path, Body: body, CSRF: r.Header.Get("X-CSRFToken")})
	status, failing := f.failures[r.URL.Path]
	gate, gatePath := f.gate, f.gatePath
	needCSRF := f.requireCS
	f.mu.Unlock()

	if gate != nil && strings.HasPrefix(r.URL.Path, gatePath) {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if failing {
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	if needCSRF && strings.HasPrefix(r.URL.Path, "/api/") && r.Method != http.MethodGet && r.Header.Get("X-CSRFToken") != csrfValue {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing."})
		return
	}

	path := r.URL.Path
	switch {
	case path == "/api/users/csrf/":
		http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: csrfValue, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": csrfValue})
	case path == "/api/users/login/":
		f.login(w, body)
	case path == "/api/users/logout/":
		f.mu.Lock()
		f.loggedIn = ""
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	case path == "/api/users/session-check/":
		f.sessionCheck(w, r)
	case path == "/api/users/profile/":
		f.mu.Lock()
		user := f.loggedIn
		f.mu.Unlock()
		if user == "" {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"name": "Alice Example", "username": user, "userid": 7})
	case path == "/api/chats/create-chat/":
		f.createChat(w)
	case path == "/api/chats/save-chat/":
		f.saveChat(w, body)
	case strings.HasPrefix(path, "/api/chats/get-chat-history/"):
		f.getHistory(w, chatIDFromPath(path, "/api/chats/get-chat-history/"))
	case strings.HasPrefix(path, "/api/chats/save-chat-name/"):
		f.saveName(w, chatIDFromPath(path, "/api/chats/save-chat-name/"), body)
	case path == "/api/chats/get-chat-ids/":
		f.mu.Lock()
		chats := make([]map[string]string, 0, len(f.order))
		for _, id := range f.order {
			chats = append(chats, map[string]string{"chat_id": id, "chat_name": f.names[id]})
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, chats)
	case strings.HasPrefix(path, "/api/chats/delete-chat/"):
		f.deleteChat(w, chatIDFromPath(path, "/api/chats/delete-chat/"))
	case path == "/api/chats/validate-json/":
		if !json.Valid(body) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "JSON is valid"})
	case path == "/switch-chat":
		var req struct {
			ChatID string `json:"chat_id"`
		}
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.activeID = req.ChatID
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case path == "/send-chat-history":
		var req struct {
			Messages []HistoryMessage `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.history[f.activeID] = req.Messages
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case path == "/chat":
		f.streamChat(w)
	case path == "/get-chat-name":
		f.mu.Lock()
		name := f.chatName
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"chat_name": name})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found: " + path})
	}
}

func (f *FakeBackend) login(w http.ResponseWriter, body []byte) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.Unmarshal(body, &creds)

	f.mu.Lock()
	ok := creds.Username != "" && f.users[creds.Username] == creds.Password
	if ok {
		f.loggedIn = creds.Username
	}
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "session-" + creds.Username, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (f *FakeBackend) sessionCheck(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	user := f.loggedIn
	f.mu.Unlock()

	cookie, err := r.Cookie(sessionCookie)
	if user == "" || err != nil || cookie.Value != "session-"+user {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "username": user})
}

func (f *FakeBackend) createChat(w http.ResponseWriter) {
	f.mu.Lock()
	f.nextChat++
	id := fmt.Sprintf("chat-%d", f.nextChat)
	f.chats[id] = nil
	f.names[id] = "New Chat"
	f.order = append(f.order, id)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"chat_id": id, "chat_name": "New Chat"})
}

func (f *FakeBackend) saveChat(w http.ResponseWriter, body []byte) {
	var req struct {
		ChatID    string `json:"chat_id"`
		Message   Turn   `json:"message"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.ChatID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Chat ID and message are required"})
		return
	}
	req.Message.MessageID = req.MessageID

	f.mu.Lock()
	if _, ok := f.chats[req.ChatID]; !ok {
		f.order = append(f.order, req.ChatID)
	}
	f.chats[req.ChatID] = append(f.chats[req.ChatID], req.Message)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat history saved successfully"})
}

func (f *FakeBackend) getHistory(w http.ResponseWriter, id string) {
	f.mu.Lock()
	turns := append([]Turn(nil), f.chats[id]...)
	asString := f.StringMessages
	f.mu.Unlock()

	if len(turns) == 0 {
		writeJSON(w, http.StatusOK, json.RawMessage(EmptyHistoryFixture))
		return
	}
	out := make([]map[string]interface{}, 0, len(turns))
	for _, turn := range turns {
		var msg interface{} = turn
		if asString {
			data, _ := json.Marshal(turn)
			msg = string(data)
		}
		out = append(out, map[string]interface{}{"message": msg, "time_sent": "2025-05-01T12:00:00Z"})
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeBackend) saveName(w http.ResponseWriter, id string, body []byte) {
	var req struct {
		ChatName string `json:"chat_name"`
	}
	_ = json.Unmarshal(body, &req)
	f.mu.Lock()
	f.names[id] = req.ChatName
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat name saved"})
}

func (f *FakeBackend) deleteChat(w http.ResponseWriter, id string) {
	f.mu.Lock()
	_, ok := f.chats[id]
	delete(f.chats, id)
	delete(f.names, id)
	kept := f.order[:0]
	for _, c := range f.order {
		if c != id {
			kept = append(kept, c)
		}
	}
	f.order = kept
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Chat not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}

func (f *FakeBackend) streamChat(w http.ResponseWriter) {
	f.mu.Lock()
	lines := append([]string(nil), f.stream...)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func chatIDFromPath(path, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Content renders a content stream line
func Content(s string) string {
	data, _ := json.Marshal(map[string]string{"content": s})
	return string(data)
}

// Boundary renders the separator line the inference process emits before a
// model's output.
func Boundary(name string) string {
	return Content(fmt.Sprintf("\n\n--- Response from %s ---\n\n", name))
}

// StreamError renders an error stream line
func StreamError(s string) string {
	data, _ := json.Marshal(map[string]string{"error": s})
	return string(data)
}
