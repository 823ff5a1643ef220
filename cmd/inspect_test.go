package cmd

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestInspectCommand_Text(t *testing.T) {
	env := newCmdEnv(t)
	seedConversation(env)
	if _, err := runCommand(t, "sync"); err != nil {
		t.Fatalf("sync error = %v", err)
	}

	out, err := runCommand(t, "inspect", "--sample", "1")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{
		"Database: " + env.storagePath(),
		"Schema version:",
		"Table: chats",
		"Table: messages",
		"Rows: 4",
		"chat_id: c1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectCommand_JSONRedactsCookies(t *testing.T) {
	env := newCmdEnv(t)
	if _, err := runCommand(t, "login", "-u", "alice", "-p", "secret"); err != nil {
		t.Fatalf("login error = %v", err)
	}

	out, err := runCommand(t, "inspect", env.storagePath(), "--format", "json")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if strings.Contains(out, "session-alice") {
		t.Errorf("cookie value leaked:\n%s", out)
	}

	var report struct {
		Path          string        `json:"path"`
		SchemaVersion int           `json:"schema_version"`
		Tables        []TableReport `json:"tables"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if report.Path != env.storagePath() || report.SchemaVersion == 0 {
		t.Errorf("report header = %q v%d", report.Path, report.SchemaVersion)
	}

	var cookies *TableReport
	for i := range report.Tables {
		if report.Tables[i].Name == "cookies" {
			cookies = &report.Tables[i]
		}
	}
	if cookies == nil || cookies.Rows == 0 {
		t.Fatalf("cookies table missing or empty: %+v", report.Tables)
	}
	for _, row := range cookies.Sample {
		if row["value"] != "<redacted>" {
			t.Errorf("cookie value = %v, want <redacted>", row["value"])
		}
	}
}

func TestInspectCommand_BadFormat(t *testing.T) {
	newCmdEnv(t)
	if _, err := runCommand(t, "inspect", "--format", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("quoteIdent = %s", got)
	}
}
