package internal

import (
	"testing"
)

func TestStore_Messages(t *testing.T) {
	s := NewStore()
	var kinds []StoreEventKind
	unsubscribe := s.Subscribe(func(ev StoreEvent) { kinds = append(kinds, ev.Kind) })

	s.AddMessage(Message{ID: "a", Role: RoleUser, Content: "hi"})
	s.AddMessage(Message{ID: "b", Role: RoleAssistant, Content: "", Streaming: true})

	if !s.UpdateMessage("b", "hello", false) {
		t.Fatal("UpdateMessage(b) = false")
	}
	if s.UpdateMessage("missing", "x", false) {
		t.Error("UpdateMessage(missing) = true")
	}

	msg, ok := s.Message("b")
	if !ok || msg.Content != "hello" || msg.Streaming {
		t.Errorf("Message(b) = %+v, %v", msg, ok)
	}

	// returned slices are copies
	msgs := s.Messages()
	msgs[0].Content = "changed"
	if m, _ := s.Message("a"); m.Content != "hi" {
		t.Error("Messages() exposed internal state")
	}

	s.ReplaceMessages([]Message{{ID: "z", Role: RoleUser, Content: "new"}})
	if _, ok := s.Message("a"); ok {
		t.Error("old message survived ReplaceMessages")
	}
	s.ClearMessages()
	if len(s.Messages()) != 0 {
		t.Error("ClearMessages left messages")
	}

	unsubscribe()
	s.AddMessage(Message{ID: "late"})

	want := []StoreEventKind{EventMessageAdded, EventMessageAdded, EventMessageUpdated, EventMessagesReplaced, EventMessagesCleared}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestStore_ActiveChat(t *testing.T) {
	s := NewStore()
	changes := 0
	s.Subscribe(func(ev StoreEvent) {
		if ev.Kind == EventActiveChatChanged {
			changes++
		}
	})

	s.SetActiveChatID("c1")
	s.SetActiveChatID("c1")
	if s.ActiveChatID() != "c1" {
		t.Errorf("ActiveChatID = %q", s.ActiveChatID())
	}
	if changes != 1 {
		t.Errorf("changes = %d, want 1", changes)
	}
}

func TestStore_Chats(t *testing.T) {
	s := NewStore()
	s.UpsertChat(ChatSummary{ID: "c1", Title: "New Chat"})
	s.UpsertChat(ChatSummary{ID: "c2"})
	s.UpsertChat(ChatSummary{ID: "c1", Title: "Named"})

	chats := s.Chats()
	if len(chats) != 2 || chats[0].Title != "Named" {
		t.Errorf("Chats = %+v", chats)
	}

	s.SetActiveChatID("c1")
	s.AddMessage(Message{ID: "m"})
	s.RemoveChat("c2")
	if s.ActiveChatID() != "c1" || len(s.Messages()) != 1 {
		t.Error("removing an inactive chat touched the active one")
	}

	s.RemoveChat("c1")
	if s.ActiveChatID() != "" || len(s.Messages()) != 0 || len(s.Chats()) != 0 {
		t.Error("removing the active chat did not clear it")
	}
}

func TestStore_Models(t *testing.T) {
	s := NewStore()
	a := s.AddModel(NewModelConfiguration("A", Catalog[0].Value))
	b := s.AddModel(NewModelConfiguration("B", Catalog[1].Value))
	if a.ID != 0 || b.ID != 1 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}

	b.HistorySource.Models = []int{a.ID}
	if err := s.UpdateModel(b); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateModel(ModelConfiguration{ID: 99}); err == nil {
		t.Error("UpdateModel(99) succeeded")
	}

	if err := s.RemoveModel(a.ID); err != nil {
		t.Fatal(err)
	}
	models := s.Models()
	if len(models) != 1 || len(models[0].HistorySource.Models) != 0 {
		t.Errorf("after remove = %+v", models)
	}
	if err := s.RemoveModel(a.ID); err == nil {
		t.Error("second RemoveModel succeeded")
	}

	// ids are never reused
	c := s.AddModel(NewModelConfiguration("C", Catalog[2].Value))
	if c.ID != 2 {
		t.Errorf("new id = %d, want 2", c.ID)
	}
}

func TestStore_SetModelsAdvancesCounter(t *testing.T) {
	s := NewStore()
	models := CreateTestModels(2)
	models[1].ID = 7
	s.SetModels(models, 3)

	if got := s.NextModelID(); got != 8 {
		t.Errorf("NextModelID = %d, want 8", got)
	}
	s.SetModels(nil, 2)
	if got := s.NextModelID(); got != 8 {
		t.Errorf("NextModelID went backwards to %d", got)
	}
}
