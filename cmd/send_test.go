package cmd

import (
	"strings"
	"testing"

	"github.com/iksnae/multichat/internal"
	"github.com/iksnae/multichat/testutil"
)

func TestSendCommand_NewChat(t *testing.T) {
	env := newCmdEnv(t)
	env.backend.SetStream(testutil.Content("Hello "), testutil.Content("back"))

	out, err := runCommand(t, "send", "hi", "there")
	if err != nil {
		t.Fatalf("send error = %v", err)
	}
	if !strings.Contains(out, "Hello back") {
		t.Errorf("streamed reply missing:\n%s", out)
	}
	if !strings.Contains(out, "chat chat-1: Generated Title") {
		t.Errorf("chat id and title missing:\n%s", out)
	}

	turns := env.backend.Turns("chat-1")
	if len(turns) != 2 || turns[0].Content != "hi there" || turns[1].Role != "assistant" {
		t.Fatalf("persisted turns = %+v", turns)
	}
	if env.backend.ChatName("chat-1") != "Generated Title" {
		t.Errorf("chat name = %q", env.backend.ChatName("chat-1"))
	}

	// the send is mirrored locally
	out, err = runCommand(t, "show", "chat-1", "--local")
	if err != nil {
		t.Fatalf("show --local error = %v", err)
	}
	if !strings.Contains(out, "hi there") || !strings.Contains(out, "Hello back") {
		t.Errorf("local transcript incomplete:\n%s", out)
	}
}

func TestSendCommand_ExistingChat(t *testing.T) {
	env := newCmdEnv(t)
	env.backend.SeedChat("c1", "Chosen",
		testutil.Turn{Role: "user", Content: "earlier", MessageID: "u1"},
		testutil.Turn{Role: "assistant", Content: "**DeepSeek-R1:**\nreply", MessageID: "a1"},
	)
	env.backend.SetStream(testutil.Content("again"))

	if _, err := runCommand(t, "send", "--chat", "c1", "follow up"); err != nil {
		t.Fatalf("send error = %v", err)
	}
	if n := len(env.backend.Turns("c1")); n != 4 {
		t.Errorf("turns = %d, want 4", n)
	}
	if ids := env.backend.ChatIDs(); len(ids) != 1 {
		t.Errorf("a new chat was created: %v", ids)
	}
	active, history := env.backend.LoadedHistory()
	if active != "c1" || len(history) != 2 {
		t.Errorf("inference history = %s %+v", active, history)
	}
}

func TestSendCommand_ExistingChatKeepsTitle(t *testing.T) {
	env := newCmdEnv(t)
	env.backend.SeedChat("c1", "Chosen",
		testutil.Turn{Role: "user", Content: "earlier", MessageID: "u1"},
		testutil.Turn{Role: "assistant", Content: "**DeepSeek-R1:**\nreply", MessageID: "a1"},
	)
	env.backend.SetStream(testutil.Content("again"))

	out, err := runCommand(t, "send", "--chat", "c1", "follow up")
	if err != nil {
		t.Fatalf("send error = %v", err)
	}
	if got := env.backend.ChatName("c1"); got != "Chosen" {
		t.Errorf("chat name = %q, want %q", got, "Chosen")
	}
	if n := env.backend.CountCalls("POST", "/get-chat-name"); n != 0 {
		t.Errorf("title generated %d time(s) for a named chat", n)
	}
	if !strings.Contains(out, "chat c1: Chosen") {
		t.Errorf("chat id and title missing:\n%s", out)
	}
}

func TestSendCommand_StreamFailure(t *testing.T) {
	env := newCmdEnv(t)
	env.backend.Fail("/chat", 500)

	out, err := runCommand(t, "send", "hello")
	if err == nil {
		t.Fatal("expected error when the stream fails")
	}
	if !strings.Contains(out, internal.ConnectionErrorText) {
		t.Errorf("connection error message missing:\n%s", out)
	}
}

func TestSendCommand_NoModels(t *testing.T) {
	env := newCmdEnv(t)
	writeModels(t, env, "next_id: 3\nmodels: []\n")

	_, err := runCommand(t, "send", "hello")
	if err == nil || !strings.Contains(err.Error(), internal.ErrNoModels.Error()) {
		t.Errorf("send error = %v, want %v", err, internal.ErrNoModels)
	}
	if len(env.backend.Calls()) != 0 {
		t.Error("no request should be made without models")
	}
}
