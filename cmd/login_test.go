package cmd

import (
	"strings"
	"testing"
)

func TestLoginWhoamiLogout(t *testing.T) {
	newCmdEnv(t)

	out, err := runCommand(t, "whoami")
	if err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	if !strings.Contains(out, "Not signed in") {
		t.Errorf("expected signed-out output:\n%s", out)
	}

	if _, err := runCommand(t, "login", "-u", "alice", "-p", "secret"); err != nil {
		t.Fatalf("login error = %v", err)
	}

	out, err = runCommand(t, "whoami")
	if err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	for _, want := range []string{"Alice Example", "username: alice", "id: 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("whoami output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCommand(t, "logout"); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	out, err = runCommand(t, "whoami")
	if err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	if !strings.Contains(out, "Not signed in") {
		t.Errorf("session should be gone after logout:\n%s", out)
	}
}

func TestLoginCommand_WrongPassword(t *testing.T) {
	env := newCmdEnv(t)

	_, err := runCommand(t, "login", "-u", "alice", "-p", "nope")
	if err == nil || !strings.Contains(err.Error(), "login failed") {
		t.Fatalf("login error = %v, want login failed", err)
	}

	a := env.app(t, false)
	for _, c := range a.client.Cookies() {
		if c.Name == "sessionid" {
			t.Errorf("no session cookie should be saved, got %v", c)
		}
	}
}

func TestLoginCommand_EmptyPassword(t *testing.T) {
	newCmdEnv(t)
	if _, err := runCommand(t, "login", "-u", "alice", "-p", ""); err == nil {
		t.Error("expected error for an empty password")
	}
}
