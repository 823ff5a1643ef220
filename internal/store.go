package internal

import (
	"fmt"
	"sync"
)

// StoreEventKind identifies what changed in the Store
type StoreEventKind int

const (
	EventMessageAdded StoreEventKind = iota
	EventMessageUpdated
	EventMessagesCleared
	EventMessagesReplaced
	EventActiveChatChanged
	EventChatsChanged
	EventModelsChanged
)

// StoreEvent is delivered to subscribers after a mutation
type StoreEvent struct {
	Kind    StoreEventKind
	Message Message
	ChatID  string
}

// MessageSink receives the messages produced while a turn streams in.
type MessageSink interface {
	AddMessage(msg Message)
	UpdateMessage(id, content string, streaming bool) bool
}

// Store is the client's state container. It owns the visible message list,
// the active chat pointer, the chat list and the model configuration set.
// All access is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	messages     []Message
	index        map[string]int
	activeChatID string
	chats        []ChatSummary
	models       []ModelConfiguration
	nextModelID  int

	subMu       sync.RWMutex
	subscribers map[int]func(StoreEvent)
	nextSubID   int
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		index:       make(map[string]int),
		subscribers: make(map[int]func(StoreEvent)),
	}
}

// Subscribe registers fn for every subsequent event. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(StoreEvent)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) emit(ev StoreEvent) {
	s.subMu.RLock()
	fns := make([]func(StoreEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Messages returns a copy of the visible messages in order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message looks up a message by id.
func (s *Store) Message(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i], true
}

// AddMessage appends a message.
func (s *Store) AddMessage(msg Message) {
	s.mu.Lock()
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventMessageAdded, Message: msg})
}

// UpdateMessage replaces a message's content and streaming flag.
// It reports false when the id is unknown.
func (s *Store) UpdateMessage(id, content string, streaming bool) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.messages[i].Content = content
	s.messages[i].Streaming = streaming
	msg := s.messages[i]
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventMessageUpdated, Message: msg})
	return true
}

// ClearMessages empties the visible message list.
func (s *Store) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	s.index = make(map[string]int)
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventMessagesCleared})
}

// ReplaceMessages swaps the whole message list.
func (s *Store) ReplaceMessages(msgs []Message) {
	s.mu.Lock()
	s.messages = make([]Message, len(msgs))
	copy(s.messages, msgs)
	s.index = make(map[string]int, len(msgs))
	for i, m := range s.messages {
		s.index[m.ID] = i
	}
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventMessagesReplaced})
}

// ActiveChatID returns the active chat, or "" when none is active.
func (s *Store) ActiveChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChatID
}

// SetActiveChatID moves the active chat pointer.
func (s *Store) SetActiveChatID(id string) {
	s.mu.Lock()
	changed := s.activeChatID != id
	s.activeChatID = id
	s.mu.Unlock()

	if changed {
		s.emit(StoreEvent{Kind: EventActiveChatChanged, ChatID: id})
	}
}

// Chats returns the known chats.
func (s *Store) Chats() []ChatSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatSummary, len(s.chats))
	copy(out, s.chats)
	return out
}

// SetChats replaces the chat list.
func (s *Store) SetChats(chats []ChatSummary) {
	s.mu.Lock()
	s.chats = append([]ChatSummary(nil), chats...)
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventChatsChanged})
}

// UpsertChat adds a chat or updates its title.
func (s *Store) UpsertChat(chat ChatSummary) {
	s.mu.Lock()
	found := false
	for i := range s.chats {
		if s.chats[i].ID == chat.ID {
			s.chats[i] = chat
			found = true
			break
		}
	}
	if !found {
		s.chats = append(s.chats, chat)
	}
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventChatsChanged, ChatID: chat.ID})
}

// ChatByID looks up a chat in the list.
func (s *Store) ChatByID(id string) (ChatSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chats {
		if c.ID == id {
			return c, true
		}
	}
	return ChatSummary{}, false
}

// RemoveChat drops a chat. If it was active the active pointer and the
// visible messages are cleared too.
func (s *Store) RemoveChat(id string) {
	s.mu.Lock()
	kept := s.chats[:0]
	for _, c := range s.chats {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.chats = kept
	wasActive := s.activeChatID == id
	if wasActive {
		s.activeChatID = ""
		s.messages = nil
		s.index = make(map[string]int)
	}
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventChatsChanged, ChatID: id})
	if wasActive {
		s.emit(StoreEvent{Kind: EventActiveChatChanged})
		s.emit(StoreEvent{Kind: EventMessagesCleared})
	}
}

// Models returns a copy of the configured models in order.
func (s *Store) Models() []ModelConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModelConfiguration, len(s.models))
	copy(out, s.models)
	return out
}

// AddModel assigns the next id to cfg and appends it. Ids are never reused.
func (s *Store) AddModel(cfg ModelConfiguration) ModelConfiguration {
	s.mu.Lock()
	cfg.ID = s.nextModelID
	s.nextModelID++
	s.models = append(s.models, cfg)
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventModelsChanged})
	return cfg
}

// SetModels loads a saved model set, keeping its ids. The id counter moves
// past both the loaded ids and anything handed out before.
func (s *Store) SetModels(models []ModelConfiguration, nextID int) {
	s.mu.Lock()
	s.models = append([]ModelConfiguration(nil), models...)
	if nextID > s.nextModelID {
		s.nextModelID = nextID
	}
	for _, m := range models {
		if m.ID >= s.nextModelID {
			s.nextModelID = m.ID + 1
		}
	}
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventModelsChanged})
}

// NextModelID returns the id the next AddModel will assign.
func (s *Store) NextModelID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextModelID
}

// UpdateModel replaces the model with the same id.
func (s *Store) UpdateModel(cfg ModelConfiguration) error {
	s.mu.Lock()
	_, i, ok := ModelByID(s.models, cfg.ID)
	if ok {
		s.models[i] = cfg
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("model %d not found", cfg.ID)
	}
	s.emit(StoreEvent{Kind: EventModelsChanged})
	return nil
}

// RemoveModel deletes a model and drops references to it from the other
// models' history sources.
func (s *Store) RemoveModel(id int) error {
	s.mu.Lock()
	_, i, ok := ModelByID(s.models, id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("model %d not found", id)
	}
	s.models = append(s.models[:i], s.models[i+1:]...)
	for j := range s.models {
		refs := s.models[j].HistorySource.Models
		kept := make([]int, 0, len(refs))
		for _, ref := range refs {
			if ref != id {
				kept = append(kept, ref)
			}
		}
		s.models[j].HistorySource.Models = kept
	}
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: EventModelsChanged})
	return nil
}
