package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowmate/flowmate/internal/domain"
	"github.com/flowmate/flowmate/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "dev.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ts := httptest.NewServer(New(repo, "*").Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func TestServer_CreateAndListSessions(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]string{
		"processId": "p1",
		"title":     "First",
	})
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var created domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if created.ID == "" || created.Title != "First" {
		t.Errorf("Unexpected session: %+v", created)
	}

	listResp, err := http.Get(ts.URL + "/api/sessions?processId=p1")
	if err != nil {
		t.Fatalf("GET sessions failed: %v", err)
	}
	defer func() { _ = listResp.Body.Close() }()

	var sessions []domain.Session
	if err := json.NewDecoder(listResp.Body).Decode(&sessions); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != created.ID {
		t.Errorf("Expected the created session, got %v", sessions)
	}
}

func TestServer_CreateSessionRequiresProcessID(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]string{"title": "x"})
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_GetMessagesUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/sessions/nope/messages")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_ListSessionsEmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/sessions?processId=empty")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var sessions []domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if sessions == nil {
		t.Error("Expected empty array, not null")
	}
}

func TestMockAssistant_EchoesMarkup(t *testing.T) {
	var a mockAssistant

	text, xml := a.Reply("add a task", "<bpmn:task/>")
	if xml != "<bpmn:task/>" {
		t.Errorf("Expected markup echoed, got %q", xml)
	}
	if text == "" {
		t.Error("Expected a reply text")
	}

	_, xml = a.Reply("hello", "")
	if xml != "" {
		t.Errorf("Expected no markup without input markup, got %q", xml)
	}
}

func TestTokenize_ConcatenationReproducesText(t *testing.T) {
	text := "I understand you want to: add a task."
	if got := strings.Join(tokenize(text), ""); got != text {
		t.Errorf("Expected %q, got %q", text, got)
	}
}
