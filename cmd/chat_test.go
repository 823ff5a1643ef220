package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/iksnae/multichat/internal"
	"github.com/iksnae/multichat/testutil"
)

func TestChatSession_Commands(t *testing.T) {
	env := newCmdEnv(t)
	seedConversation(env)
	a := env.app(t, true)
	var buf bytes.Buffer
	s := &chatSession{app: a, out: &buf}
	ctx := context.Background()

	tests := []struct {
		input    string
		quit     bool
		wantErr  bool
		contains string
	}{
		{input: "/help", contains: "/open <id>"},
		{input: "/models", contains: "1 model(s)"},
		{input: "/list", contains: "Found 1 chat(s)"},
		{input: "/open c1", contains: "second answer"},
		{input: "/history", contains: "first question"},
		{input: "/open", wantErr: true},
		{input: "/bogus", wantErr: true},
		{input: "/new"},
		{input: "/quit", quit: true},
		{input: "/q", quit: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			buf.Reset()
			quit, err := s.command(ctx, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("command(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if quit != tt.quit {
				t.Errorf("command(%q) quit = %v, want %v", tt.input, quit, tt.quit)
			}
			if tt.contains != "" && !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("command(%q) output missing %q:\n%s", tt.input, tt.contains, buf.String())
			}
		})
	}

	if a.store.ActiveChatID() != "" {
		t.Errorf("/new should clear the active chat, got %q", a.store.ActiveChatID())
	}
}

func TestChatSession_Send(t *testing.T) {
	env := newCmdEnv(t)
	env.backend.SetStream(testutil.Content("streamed reply"))
	a := env.app(t, true)
	var buf bytes.Buffer
	s := &chatSession{app: a, out: &buf}

	s.send(context.Background(), "hello")
	a.coordinator.Wait()

	if !strings.Contains(buf.String(), "streamed reply") {
		t.Errorf("reply not printed:\n%s", buf.String())
	}
	if got := promptLabel(a.store); got != "Generated Title> " {
		t.Errorf("promptLabel = %q", got)
	}
}

func TestChatSession_OpenKeepsTitle(t *testing.T) {
	env := newCmdEnv(t)
	seedConversation(env)
	env.backend.SetStream(testutil.Content("more"))
	a := env.app(t, true)
	var buf bytes.Buffer
	s := &chatSession{app: a, out: &buf}
	ctx := context.Background()

	if _, err := s.command(ctx, "/open c1"); err != nil {
		t.Fatalf("/open error = %v", err)
	}
	if got := promptLabel(a.store); got != "Greetings> " {
		t.Errorf("promptLabel = %q", got)
	}

	s.send(ctx, "and another")
	a.coordinator.Wait()

	if n := env.backend.CountCalls("POST", "/get-chat-name"); n != 0 {
		t.Errorf("title generated %d time(s) for a named chat", n)
	}
	if got := env.backend.ChatName("c1"); got != "Greetings" {
		t.Errorf("chat name = %q", got)
	}
}

func TestPromptLabel(t *testing.T) {
	store := internal.NewStore()
	if got := promptLabel(store); got != "new> " {
		t.Errorf("promptLabel = %q, want new> ", got)
	}

	store.SetActiveChatID("c1")
	store.UpsertChat(internal.ChatSummary{ID: "c1", Title: internal.TitleNewChat})
	if got := promptLabel(store); got != "c1> " {
		t.Errorf("placeholder title should show the id, got %q", got)
	}

	store.UpsertChat(internal.ChatSummary{ID: "c1", Title: "Trip"})
	if got := promptLabel(store); got != "Trip> " {
		t.Errorf("promptLabel = %q, want Trip> ", got)
	}
}
