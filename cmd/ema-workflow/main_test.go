package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koscakluka/ema-workflow/internal/config"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Instruction string `json:"initial_message"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "text/event-stream")
		if strings.HasPrefix(req.Instruction, "Please draft an email") {
			io.WriteString(w, "event: step_completed\ndata: {\"step_name\": \"draft_communication_tool\", \"result\": \"Dear procurement team\"}\n")
			io.WriteString(w, "event: workflow_completed\ndata: {\"final_result\": \"done\"}\n")
			return
		}
		io.WriteString(w, "event: step_completed\ndata: {\"step_name\": \"procurement_rag_agent_tool\", \"result\": \"It is buying from one supplier. Would you like me to draft an email?\"}\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAskCommand(t *testing.T) {
	server := fakeBackend(t)
	t.Setenv("EMA_WORKFLOW_BASE_URL", server.URL)

	out, err := execute(t, "", "ask", "--conversation", "c-1", "What is sole source procurement?")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "It is buying from one supplier.") || !strings.Contains(out, "procurement team") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAskContinuesWithSQLiteStore(t *testing.T) {
	server := fakeBackend(t)
	t.Setenv("EMA_WORKFLOW_BASE_URL", server.URL)
	t.Setenv("EMA_WORKFLOW_SESSION_STORE", "sqlite")
	t.Setenv("EMA_WORKFLOW_SESSION_PATH", filepath.Join(t.TempDir(), "sessions.db"))

	if out, err := execute(t, "", "ask", "--conversation", "c-1", "What is sole source procurement?"); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	out, err := execute(t, "", "ask", "--conversation", "c-1", "yes")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Dear procurement team") {
		t.Fatalf("expected the draft, got %q", out)
	}
}

func TestPlainChat(t *testing.T) {
	server := fakeBackend(t)
	t.Setenv("EMA_WORKFLOW_BASE_URL", server.URL)

	out, err := execute(t, "What is sole source procurement?\nno\n", "chat", "--plain")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ema> It is buying from one supplier.") || !strings.Contains(out, "I won't draft an email") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSchemaCommandIgnoresBadConfig(t *testing.T) {
	t.Setenv("EMA_WORKFLOW_BASE_URL", "not a url")

	out, err := execute(t, "", "schema")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ema-workflow configuration") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("sessions:\n  store: redis\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "", "--config", path, "ask", "hi"); err == nil {
		t.Fatalf("expected invalid config to fail")
	}
}

func TestIdentity(t *testing.T) {
	conversationID, userID, userName := identity(config.Chat{UserName: "Sam"}, "", "", "")
	if conversationID == "" || userID != conversationID || userName != "Sam" {
		t.Fatalf("unexpected identity %q %q %q", conversationID, userID, userName)
	}

	conversationID, userID, _ = identity(config.Chat{ConversationID: "from-config", UserID: "u"}, "", "", "")
	if conversationID != "from-config" || userID != "u" {
		t.Fatalf("unexpected identity %q %q", conversationID, userID)
	}
}
