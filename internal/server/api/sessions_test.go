package api

import (
	"net/http"
	"testing"

	"github.com/ayusman/fingerspell/internal/store"
)

func seedSession(t *testing.T, s *store.Store, id, letters string) {
	t.Helper()

	if err := s.Sessions().Create(&store.Session{ID: id}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	text := ""
	for i, r := range letters {
		if _, err := s.Sessions().AppendCommit(id, r, 0.5+float64(i)/10, i%2 == 0); err != nil {
			t.Fatalf("failed to append commit: %v", err)
		}
		text += string(r) + " "
	}
	if err := s.Sessions().End(id, text); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}
}

func TestSessionsHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionsHandler(s)

	seedSession(t, s, "session-1", "HI")
	seedSession(t, s, "session-2", "OK")

	rec := do(t, handler, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listSessionsResponse
	decode(t, rec, &response)
	if len(response.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(response.Sessions))
	}

	rec = do(t, handler, http.MethodGet, "/api/sessions?limit=1", nil)
	response = listSessionsResponse{}
	decode(t, rec, &response)
	if len(response.Sessions) != 1 {
		t.Errorf("expected 1 session with limit, got %d", len(response.Sessions))
	}

	rec = do(t, handler, http.MethodGet, "/api/sessions?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for bad limit, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestSessionsHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionsHandler(s)
	seedSession(t, s, "session-1", "HEY")

	rec := do(t, handler, http.MethodGet, "/api/sessions/session-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response sessionResponse
	decode(t, rec, &response)

	if response.Text != "H E Y " || response.Commits != 3 || response.EndedAt == "" {
		t.Errorf("unexpected session %+v", response)
	}
	if len(response.Letters) != 3 {
		t.Fatalf("expected 3 letters, got %d", len(response.Letters))
	}
	for i, want := range []string{"H", "E", "Y"} {
		if response.Letters[i].Letter != want || response.Letters[i].Seq != i+1 {
			t.Errorf("letter %d = %+v, want %s", i, response.Letters[i], want)
		}
	}
	if response.Letters[0].Confidence == nil || response.Letters[1].Confidence != nil {
		t.Error("expected confidence only where one was recorded")
	}

	rec = do(t, handler, http.MethodGet, "/api/sessions/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSessionsHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionsHandler(s)
	seedSession(t, s, "session-1", "A")

	rec := do(t, handler, http.MethodDelete, "/api/sessions/session-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	if _, err := s.Sessions().GetByID("session-1"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	rec = do(t, handler, http.MethodDelete, "/api/sessions/session-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
