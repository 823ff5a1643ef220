package internal

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// RepairText is persisted after a history that ends without an assistant turn.
	RepairText = "The last request was not completed. Please try again."
	// ConnectionErrorText is shown locally when a send fails.
	ConnectionErrorText = "Sorry, I'm having trouble connecting to the server right now."

	// DefaultSettleDelay is the pause between creating a chat and using it.
	DefaultSettleDelay = 300 * time.Millisecond

	namingTimeout = 30 * time.Second
)

// Phase is a step of the send cycle
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingChatID
	PhaseUserTurnPersisted
	PhaseStreaming
	PhasePersistingResults
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingChatID:
		return "awaiting-chat-id"
	case PhaseUserTurnPersisted:
		return "user-turn-persisted"
	case PhaseStreaming:
		return "streaming"
	case PhasePersistingResults:
		return "persisting-results"
	default:
		return "unknown"
	}
}

// ChatBackend is the subset of Client the coordinator drives.
type ChatBackend interface {
	CreateChat(ctx context.Context, models []ModelConfiguration) (ChatSummary, error)
	SwitchChat(ctx context.Context, chatID string) error
	SendChatHistory(ctx context.Context, messages []HistoryMessage) error
	StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error)
	GetChatHistory(ctx context.Context, chatID string) ([]HistoryEntry, error)
	SaveChat(ctx context.Context, chatID string, msg Message) error
	GetChatName(ctx context.Context, message string) (string, error)
	SaveChatName(ctx context.Context, chatID, name string) error
	ListChats(ctx context.Context) ([]ChatSummary, error)
	DeleteChat(ctx context.Context, chatID string) error
}

// TranscriptMirror keeps a local copy of chats. Mirror failures are logged,
// never surfaced to the caller.
type TranscriptMirror interface {
	SaveTranscript(ctx context.Context, session *ChatSession) error
	AppendMessages(ctx context.Context, chatID string, msgs ...Message) error
	SaveChatTitle(ctx context.Context, chatID, title string) error
	DeleteTranscript(ctx context.Context, chatID string) error
}

// CoordinatorOptions tunes a Coordinator. Zero values use the defaults.
type CoordinatorOptions struct {
	SettleDelay time.Duration
	Mirror      TranscriptMirror
	NewID       func() string
	Now         func() time.Time
}

// SendResult reports the outcome of one send cycle
type SendResult struct {
	OK          bool
	ChatID      string
	Created     bool
	UserMessage Message
	Buffers     []Buffer
	Err         error
}

// Coordinator keeps the Store consistent with the remote chat record and
// drives send cycles.
type Coordinator struct {
	backend     ChatBackend
	store       *Store
	normalizer  *Normalizer
	mirror      TranscriptMirror
	settleDelay time.Duration
	newID       func() string
	now         func() time.Time

	phase atomic.Int32

	actMu       sync.Mutex
	actInFlight bool
	actTarget   string
	actCancel   context.CancelFunc
	actDone     chan struct{}

	sendMu sync.Mutex
	naming sync.WaitGroup
}

// NewCoordinator creates a Coordinator over store.
func NewCoordinator(backend ChatBackend, store *Store, opts CoordinatorOptions) *Coordinator {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	} else if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		backend:     backend,
		store:       store,
		normalizer:  NewNormalizer(),
		mirror:      opts.Mirror,
		settleDelay: opts.SettleDelay,
		newID:       opts.NewID,
		now:         opts.Now,
	}
}

// Store returns the state container the coordinator writes to.
func (c *Coordinator) Store() *Store {
	return c.store
}

// Phase returns the current step of the send cycle.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Coordinator) setPhase(p Phase) {
	old := Phase(c.phase.Swap(int32(p)))
	if old != p {
		LogDebug("Send phase: %s -> %s", old, p)
	}
}

// Activate makes chatID the active chat and loads its history. An empty id
// clears the active chat without any remote call. A second call for the same
// id while one is running returns ErrActivationInProgress; a call for a
// different id cancels the running one first.
func (c *Coordinator) Activate(ctx context.Context, chatID string) error {
	for {
		c.actMu.Lock()
		if !c.actInFlight {
			break
		}
		if c.actTarget == chatID {
			c.actMu.Unlock()
			LogDebug("Activation of %q already in progress", chatID)
			return ErrActivationInProgress
		}
		target, cancel, done := c.actTarget, c.actCancel, c.actDone
		c.actMu.Unlock()

		LogDebug("Cancelling activation of %q for %q", target, chatID)
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	actCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.actInFlight = true
	c.actTarget = chatID
	c.actCancel = cancel
	c.actDone = done
	c.actMu.Unlock()

	defer func() {
		cancel()
		c.actMu.Lock()
		if c.actDone == done {
			c.actInFlight = false
			c.actTarget = ""
			c.actCancel = nil
			c.actDone = nil
		}
		c.actMu.Unlock()
		close(done)
	}()

	return c.activate(actCtx, chatID)
}

func (c *Coordinator) activate(ctx context.Context, chatID string) error {
	c.store.ClearMessages()
	c.store.SetActiveChatID(chatID)
	if chatID == "" {
		return nil
	}

	if err := c.backend.SwitchChat(ctx, chatID); err != nil {
		return err
	}
	entries, err := c.backend.GetChatHistory(ctx, chatID)
	if err != nil {
		return err
	}
	messages := c.normalizer.NormalizeHistory(chatID, entries)

	if err := c.backend.SendChatHistory(ctx, ToWireHistory(messages)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.ReplaceMessages(messages)

	if last, ok := lastMessage(messages); ok && last.Role != RoleAssistant {
		repair := Message{
			ID:        c.newID(),
			Role:      RoleAssistant,
			Content:   RepairText,
			CreatedAt: c.now(),
		}
		if err := c.backend.SaveChat(ctx, chatID, repair); err != nil {
			return err
		}
		c.store.AddMessage(repair)
		messages = append(messages, repair)
		LogInfo("Chat %s ended on an unanswered turn; added a retry notice", chatID)
	}

	// load the title of a chat opened by id before anything names it
	if _, known := c.store.ChatByID(chatID); !known {
		if err := c.RefreshChats(ctx); err != nil {
			LogWarn("Failed to load the chat list for %s: %v", chatID, err)
		}
	}

	if c.mirror != nil {
		title := ""
		if chat, ok := c.store.ChatByID(chatID); ok {
			title = chat.Title
		}
		session := &ChatSession{ID: chatID, Title: title, Messages: messages}
		if err := c.mirror.SaveTranscript(ctx, session); err != nil {
			LogWarn("Failed to mirror chat %s locally: %v", chatID, err)
		}
	}
	return nil
}

func lastMessage(messages []Message) (Message, bool) {
	if len(messages) == 0 {
		return Message{}, false
	}
	return messages[len(messages)-1], true
}

// Send runs one send cycle for text against the active chat, creating a chat
// first if none is active. It never panics; failures are reported in the
// result and shown as a single local assistant message.
func (c *Coordinator) Send(ctx context.Context, text string) SendResult {
	if strings.TrimSpace(text) == "" {
		return SendResult{Err: ErrEmptyMessage}
	}
	models := c.store.Models()
	if err := ValidateModels(models); err != nil {
		return SendResult{Err: err}
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	defer c.setPhase(PhaseIdle)

	res := SendResult{ChatID: c.store.ActiveChatID()}

	if res.ChatID == "" {
		c.setPhase(PhaseAwaitingChatID)
		chat, err := c.backend.CreateChat(ctx, models)
		if err != nil {
			return c.fail(res, err)
		}
		res.ChatID = chat.ID
		res.Created = true
		c.store.UpsertChat(chat)
		c.store.SetActiveChatID(chat.ID)
		LogDebug("Created chat %s", chat.ID)

		if err := c.settle(ctx); err != nil {
			return c.fail(res, err)
		}
	}

	res.UserMessage = Message{
		ID:        c.newID(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: c.now(),
	}
	c.store.AddMessage(res.UserMessage)
	if err := c.backend.SaveChat(ctx, res.ChatID, res.UserMessage); err != nil {
		return c.fail(res, err)
	}
	c.setPhase(PhaseUserTurnPersisted)
	c.mirrorAppend(ctx, res.ChatID, res.UserMessage)

	c.setPhase(PhaseStreaming)
	body, err := c.backend.StreamChat(ctx, ChatRequest{Message: text, Model: models, ChatID: res.ChatID})
	if err != nil {
		return c.fail(res, err)
	}
	demux := NewDemultiplexer(models, c.store)
	demux.newID = c.newID
	demux.now = c.now
	res.Buffers, err = demux.Run(ctx, body)
	body.Close()
	if err != nil {
		return c.fail(res, err)
	}

	c.setPhase(PhasePersistingResults)
	var persistErr error
	for _, b := range ReachedBuffers(res.Buffers) {
		modelID := b.ModelID
		msg := Message{
			ID:        b.MessageID,
			Role:      RoleAssistant,
			Content:   b.Text,
			ModelID:   &modelID,
			CreatedAt: c.now(),
		}
		if err := c.backend.SaveChat(ctx, res.ChatID, msg); err != nil {
			LogError("Failed to save %s's reply: %v", b.ModelName, err)
			if persistErr == nil {
				persistErr = err
			}
			continue
		}
		c.mirrorAppend(ctx, res.ChatID, msg)
	}
	if persistErr != nil {
		return c.fail(res, persistErr)
	}

	chat, known := c.store.ChatByID(res.ChatID)
	if res.Created || !known || chat.HasPlaceholderTitle() {
		c.nameChat(res.ChatID, text)
	}

	res.OK = true
	return res
}

func (c *Coordinator) settle(ctx context.Context) error {
	if c.settleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(c.settleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) fail(res SendResult, err error) SendResult {
	LogError("Send failed: %v", err)
	c.store.AddMessage(Message{
		ID:        c.newID(),
		Role:      RoleAssistant,
		Content:   ConnectionErrorText,
		CreatedAt: c.now(),
	})
	res.OK = false
	res.Err = err
	return res
}

func (c *Coordinator) mirrorAppend(ctx context.Context, chatID string, msg Message) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.AppendMessages(ctx, chatID, msg); err != nil {
		LogWarn("Failed to mirror message %s locally: %v", msg.ID, err)
	}
}

// nameChat generates and saves a title in the background. Failures are
// logged and dropped.
func (c *Coordinator) nameChat(chatID, message string) {
	c.naming.Add(1)
	go func() {
		defer c.naming.Done()
		ctx, cancel := context.WithTimeout(context.Background(), namingTimeout)
		defer cancel()

		name, err := c.backend.GetChatName(ctx, message)
		if err != nil {
			LogWarn("Failed to generate a name for chat %s: %v", chatID, err)
			return
		}
		name = strings.TrimSpace(name)
		if name == "" {
			LogDebug("Naming returned an empty title for chat %s", chatID)
			return
		}
		if err := c.backend.SaveChatName(ctx, chatID, name); err != nil {
			LogWarn("Failed to save the name of chat %s: %v", chatID, err)
			return
		}
		c.store.UpsertChat(ChatSummary{ID: chatID, Title: name})
		if c.mirror != nil {
			if err := c.mirror.SaveChatTitle(ctx, chatID, name); err != nil {
				LogWarn("Failed to mirror the name of chat %s: %v", chatID, err)
			}
		}
		if err := c.RefreshChats(ctx); err != nil {
			LogWarn("Failed to refresh the chat list: %v", err)
		}
	}()
}

// Wait blocks until background naming work has finished.
func (c *Coordinator) Wait() {
	c.naming.Wait()
}

// RefreshChats reloads the chat list. Titles already known locally are kept
// for entries the API returns as bare ids.
func (c *Coordinator) RefreshChats(ctx context.Context) error {
	chats, err := c.backend.ListChats(ctx)
	if err != nil {
		return err
	}
	for i := range chats {
		if chats[i].Title != "" {
			continue
		}
		if known, ok := c.store.ChatByID(chats[i].ID); ok {
			chats[i].Title = known.Title
		}
	}
	c.store.SetChats(chats)
	return nil
}

// DeleteChat removes a chat remotely and locally. Deleting the active chat
// clears the active pointer and the visible messages.
func (c *Coordinator) DeleteChat(ctx context.Context, chatID string) error {
	if err := c.backend.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	c.store.RemoveChat(chatID)
	if c.mirror != nil {
		if err := c.mirror.DeleteTranscript(ctx, chatID); err != nil {
			LogWarn("Failed to delete local copy of chat %s: %v", chatID, err)
		}
	}
	return nil
}

// Close cancels an in-flight activation and waits for background work.
func (c *Coordinator) Close() {
	c.actMu.Lock()
	cancel, done := c.actCancel, c.actDone
	c.actMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	c.Wait()
}
