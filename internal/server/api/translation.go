package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/stabilizer"
)

// TranslationHandler serves the live translation: the transcript, raw
// observations from external classifiers, the stabilizer and its statistics.
type TranslationHandler struct {
	app *app.App
}

// NewTranslationHandler creates a TranslationHandler for a.
func NewTranslationHandler(a *app.App) *TranslationHandler {
	return &TranslationHandler{app: a}
}

// Register adds the translation routes to mux.
func (h *TranslationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/transcript", h.handleTranscript)
	mux.HandleFunc("/api/observations", h.handleObservations)
	mux.HandleFunc("/api/stabilizer", h.handleStabilizer)
	mux.HandleFunc("/api/stabilizer/reset", h.handleReset)
	mux.HandleFunc("/api/stats", h.handleStats)
}

type transcriptResponse struct {
	Text    string `json:"text"`
	Session string `json:"session"`
}

type editTranscriptRequest struct {
	Text *string `json:"text"`
}

type observationRequest struct {
	// Label is a letter, or empty for "no hand detected".
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type stateResponse struct {
	Candidate       string  `json:"candidate"`
	Streak          int     `json:"streak"`
	CommitThreshold int     `json:"commit_threshold"`
	MinConfidence   float64 `json:"min_confidence"`
	Alphabet        string  `json:"alphabet"`
}

type observationResponse struct {
	Committed bool          `json:"committed"`
	Commit    *app.Event    `json:"commit,omitempty"`
	State     stateResponse `json:"state"`
	Text      string        `json:"text"`
}

func (h *TranslationHandler) stateResponse(s stabilizer.State) stateResponse {
	cfg := h.app.StabilizerConfig()
	resp := stateResponse{
		Streak:          s.Streak,
		CommitThreshold: cfg.CommitThreshold,
		MinConfidence:   cfg.MinConfidence,
		Alphabet:        cfg.Alphabet.String(),
	}
	if s.Candidate != stabilizer.NoLabel {
		resp.Candidate = string(s.Candidate)
	}
	return resp
}

// handleTranscript handles GET, PUT and DELETE /api/transcript.
// DELETE starts a new translation.
func (h *TranslationHandler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		session, err := h.app.Session(ctx)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Translator is not running")
			return
		}
		writeJSON(w, http.StatusOK, transcriptResponse{Text: h.app.Transcript(), Session: session})

	case http.MethodPut:
		var req editTranscriptRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Text == nil {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}
		if err := h.app.EditTranscript(ctx, *req.Text); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Translator is not running")
			return
		}
		session, _ := h.app.Session(ctx)
		writeJSON(w, http.StatusOK, transcriptResponse{Text: h.app.Transcript(), Session: session})

	case http.MethodDelete:
		session, err := h.app.NewSession(ctx)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Translator is not running")
			return
		}
		writeJSON(w, http.StatusOK, transcriptResponse{Text: "", Session: session})

	default:
		methodNotAllowed(w)
	}
}

// handleObservations handles POST /api/observations.
// Labels outside the alphabet are passed through and count as no detection.
func (h *TranslationHandler) handleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req observationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
		writeError(w, http.StatusBadRequest, "confidence must be between 0 and 1")
		return
	}

	obs := stabilizer.NoDetection()
	if letter, ok := h.app.StabilizerConfig().Alphabet.Normalize(req.Label); ok {
		obs = stabilizer.Labeled(letter)
	}
	if req.Confidence != nil {
		obs.Confidence = *req.Confidence
		obs.HasConfidence = true
	}

	res, err := h.app.ObserveWait(r.Context(), obs)
	if err != nil {
		if errors.Is(err, app.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "Translator is not running")
			return
		}
		writeError(w, http.StatusRequestTimeout, "Observation was not processed")
		return
	}

	writeJSON(w, http.StatusOK, observationResponse{
		Committed: res.Committed,
		Commit:    res.Commit,
		State:     h.stateResponse(res.State),
		Text:      h.app.Transcript(),
	})
}

// handleStabilizer handles GET /api/stabilizer.
func (h *TranslationHandler) handleStabilizer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	state, err := h.app.State(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Translator is not running")
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse(state))
}

// handleReset handles POST /api/stabilizer/reset.
func (h *TranslationHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if err := h.app.ResetStabilizer(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Translator is not running")
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse(stabilizer.State{}))
}

// handleStats handles GET /api/stats.
func (h *TranslationHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Stats())
}
