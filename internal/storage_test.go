package internal

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/iksnae/multichat/testutil"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	db, err := OpenDatabase(MemoryDatabase)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStorage(db, MemoryDatabase)
}

func TestNewStorage(t *testing.T) {
	s := newTestStorage(t)
	if s.db == nil || s.path != MemoryDatabase {
		t.Errorf("NewStorage() = %+v", s)
	}
}

func TestStorage_SaveAndLoadTranscript(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	session := CreateTestSession("c1")

	if err := s.SaveTranscript(ctx, session); err != nil {
		t.Fatalf("SaveTranscript() error = %v", err)
	}
	loaded, err := s.LoadSession(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Title != session.Title || len(loaded.Messages) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	reply := loaded.Messages[1]
	if reply.ModelID == nil || *reply.ModelID != 0 {
		t.Errorf("ModelID = %v", reply.ModelID)
	}
	if !reply.CreatedAt.Equal(session.Messages[1].CreatedAt) {
		t.Errorf("CreatedAt = %v", reply.CreatedAt)
	}
	if loaded.Messages[0].ModelID != nil {
		t.Error("user turn got a model id")
	}

	// saving again replaces rather than duplicates
	session.Messages = session.Messages[:1]
	if err := s.SaveTranscript(ctx, session); err != nil {
		t.Fatal(err)
	}
	loaded, _ = s.LoadSession(ctx, "c1")
	if len(loaded.Messages) != 1 {
		t.Errorf("messages after resave = %d, want 1", len(loaded.Messages))
	}
}

func TestStorage_SaveTranscriptRejectsEmptyID(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveTranscript(context.Background(), &ChatSession{}); err == nil {
		t.Error("expected error for empty chat id")
	}
}

func TestStorage_AppendMessages(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.AppendMessages(ctx, "c1", Message{ID: "u1", Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	modelID := 1
	reply := Message{ID: "a1", Role: RoleAssistant, Content: "**B:**\npartial", ModelID: &modelID}
	if err := s.AppendMessages(ctx, "c1", reply); err != nil {
		t.Fatal(err)
	}
	reply.Content = "**B:**\ncomplete"
	if err := s.AppendMessages(ctx, "c1", reply); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.LoadSession(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("messages = %+v", loaded.Messages)
	}
	if loaded.Messages[0].ID != "u1" || loaded.Messages[1].Content != "**B:**\ncomplete" {
		t.Errorf("messages = %+v", loaded.Messages)
	}
}

func TestStorage_TitlesAndListing(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	clock := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	if err := s.SaveTranscript(ctx, &ChatSession{ID: "old", Title: "Old"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendMessages(ctx, "new", Message{ID: "x", Role: RoleUser, Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChatTitle(ctx, "new", "Fresh"); err != nil {
		t.Fatal(err)
	}
	// appending with no title keeps the existing one
	if err := s.AppendMessages(ctx, "new", Message{ID: "y", Role: RoleUser, Content: "y"}); err != nil {
		t.Fatal(err)
	}

	chats, err := s.ListChats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("chats = %+v", chats)
	}
	if chats[0].ID != "new" || chats[0].Title != "Fresh" {
		t.Errorf("most recent = %+v", chats[0])
	}
}

func TestStorage_DeleteTranscript(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	if err := s.SaveTranscript(ctx, CreateTestSession("c1")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTranscript(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	loaded, err := s.LoadSession(ctx, "c1")
	if err != nil || loaded != nil {
		t.Errorf("LoadSession after delete = %+v, %v", loaded, err)
	}
	if err := s.DeleteTranscript(ctx, "c1"); err != nil {
		t.Errorf("deleting a missing chat failed: %v", err)
	}
}

func TestStorage_LoadFixture(t *testing.T) {
	dbPath := filepath.Join(testutil.CreateTempDir(t), "fixture.db")
	testutil.CreateTranscriptFixture(t, dbPath)

	db, err := OpenDatabase(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := NewStorage(db, dbPath)

	chats, err := s.ListChats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[0].ID != "chat2" {
		t.Errorf("chats = %+v", chats)
	}

	session, err := s.LoadSession(context.Background(), "chat2")
	if err != nil {
		t.Fatal(err)
	}
	if last, _ := session.LastMessage(); last.Role != RoleUser {
		t.Errorf("chat2 should end on a user turn, got %+v", last)
	}
}

func TestStorage_Cookies(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	host := "localhost:8000"

	cookies := []*http.Cookie{
		{Name: "sessionid", Value: "abc"},
		{Name: "csrftoken", Value: "tok"},
		{Name: "", Value: "ignored"},
	}
	if err := s.SaveCookies(ctx, host, cookies); err != nil {
		t.Fatal(err)
	}
	loaded, err := s.LoadCookies(ctx, host)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 || loaded[0].Name != "csrftoken" || loaded[1].Value != "abc" {
		t.Errorf("cookies = %+v", loaded)
	}

	if other, _ := s.LoadCookies(ctx, "elsewhere"); len(other) != 0 {
		t.Errorf("cookies leaked across hosts: %+v", other)
	}

	if err := s.ClearCookies(ctx, host); err != nil {
		t.Fatal(err)
	}
	if loaded, _ := s.LoadCookies(ctx, host); len(loaded) != 0 {
		t.Errorf("cookies after clear = %+v", loaded)
	}
}
