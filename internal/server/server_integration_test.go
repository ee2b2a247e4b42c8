package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/fingerspell/internal/app"
)

func postObservation(t *testing.T, client *http.Client, url, label string) {
	t.Helper()

	body := `{"label": "` + label + `", "confidence": 0.9}`
	resp, err := client.Post(url+"/api/observations", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/observations error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/observations status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestAPI_TranslationWorkflow(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Spell "HI"
	for _, label := range []string{"H", "H", "H", "H", "I", "I", "I", "I"} {
		postObservation(t, client, ts.URL, label)
	}

	// 2. Read the transcript
	resp, _ := client.Get(ts.URL + "/api/transcript")
	var transcript struct {
		Text    string `json:"text"`
		Session string `json:"session"`
	}
	json.NewDecoder(resp.Body).Decode(&transcript)
	resp.Body.Close()

	if transcript.Text != "H I " {
		t.Fatalf("transcript = %q, want %q", transcript.Text, "H I ")
	}

	// 3. Start a new translation
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/transcript", nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE /api/transcript status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 4. The finished session is stored with its letters
	resp, _ = client.Get(ts.URL + "/api/sessions/" + transcript.Session)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/sessions/%s status = %d, want %d", transcript.Session, resp.StatusCode, http.StatusOK)
	}
	var session struct {
		Text    string `json:"text"`
		EndedAt string `json:"ended_at"`
		Letters []struct {
			Letter string `json:"letter"`
		} `json:"letters"`
	}
	json.NewDecoder(resp.Body).Decode(&session)
	resp.Body.Close()

	if session.Text != "H I " || session.EndedAt == "" || len(session.Letters) != 2 {
		t.Errorf("stored session = %+v", session)
	}

	// 5. The session list holds the old and the new session
	resp, _ = client.Get(ts.URL + "/api/sessions")
	var listed struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Sessions) != 2 {
		t.Errorf("len(sessions) = %d, want 2", len(listed.Sessions))
	}
}

func dialEvents(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/commits" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) app.Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e app.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return e
}

func waitClients(t *testing.T, srv *Server, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for srv.events.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", srv.events.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPI_CommitEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	commits := dialEvents(t, ts, "")
	observations := dialEvents(t, ts, "?observations=1")
	waitClients(t, srv, 2)

	for i := 0; i < 4; i++ {
		postObservation(t, ts.Client(), ts.URL, "W")
	}

	e := readEvent(t, commits)
	if e.Type != app.EventCommit || e.Letter != "W" || e.Seq != 1 || e.Text != "W " {
		t.Errorf("commit event = %+v", e)
	}

	for i := 1; i <= 4; i++ {
		e := readEvent(t, observations)
		if e.Type != app.EventObservation || e.Streak != i%4 {
			t.Fatalf("event %d = %s streak %d, want observation", i, e.Type, e.Streak)
		}
	}
	if e := readEvent(t, observations); e.Type != app.EventCommit {
		t.Errorf("expected commit after observations, got %s", e.Type)
	}

	// clearing the transcript is announced as well
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/transcript", nil)
	resp, _ := ts.Client().Do(req)
	resp.Body.Close()

	if e := readEvent(t, commits); e.Type != app.EventClear {
		t.Errorf("expected clear event, got %s", e.Type)
	}

	commits.Close()
	waitClients(t, srv, 1)
}
