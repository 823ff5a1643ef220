package cmd

import (
	"strings"
	"testing"

	"github.com/iksnae/multichat/testutil"
)

func TestSyncCommand_AllChats(t *testing.T) {
	env := newCmdEnv(t)
	seedConversation(env)

	if _, err := runCommand(t, "sync"); err != nil {
		t.Fatalf("sync error = %v", err)
	}

	out, err := runCommand(t, "list", "--local")
	if err != nil {
		t.Fatalf("list --local error = %v", err)
	}
	if !strings.Contains(out, "Found 1 chat(s)") || !strings.Contains(out, "c1") {
		t.Errorf("synced chat not listed:\n%s", out)
	}

	out, err = runCommand(t, "show", "c1", "--local")
	if err != nil {
		t.Fatalf("show --local error = %v", err)
	}
	if !strings.Contains(out, "Messages: 4") || !strings.Contains(out, "second answer") {
		t.Errorf("synced transcript incomplete:\n%s", out)
	}
}

func TestSyncCommand_SelectedChat(t *testing.T) {
	env := newCmdEnv(t)
	seedConversation(env)
	env.backend.SeedChat("c2", "", testutil.Turn{Role: "user", Content: "other"})

	if _, err := runCommand(t, "sync", "c2"); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if _, err := runCommand(t, "show", "c1", "--local"); err == nil {
		t.Error("c1 was not requested and should not be synced")
	}
	if _, err := runCommand(t, "show", "c2", "--local"); err != nil {
		t.Errorf("c2 should be synced: %v", err)
	}
}

func TestSyncCommand_PartialFailure(t *testing.T) {
	env := newCmdEnv(t)
	seedConversation(env)
	env.backend.SeedChat("c2", "", testutil.Turn{Role: "user", Content: "other"})
	env.backend.Fail("/api/chats/get-chat-history/c2/", 500)

	_, err := runCommand(t, "sync")
	if err == nil || !strings.Contains(err.Error(), "synced 1 chat(s), 1 failed") {
		t.Fatalf("sync error = %v", err)
	}
	if _, err := runCommand(t, "show", "c1", "--local"); err != nil {
		t.Errorf("c1 should still be synced: %v", err)
	}
}
