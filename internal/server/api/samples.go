package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayusman/fingerspell/internal/alphabet"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/store"
)

// SamplesHandler handles HTTP requests for training samples.
type SamplesHandler struct {
	store    *store.Store
	alphabet *alphabet.Alphabet
}

// NewSamplesHandler creates a new SamplesHandler. Letter labels are
// normalized against a; other labels (such as "nothing") are kept lower-cased.
func NewSamplesHandler(s *store.Store, a *alphabet.Alphabet) *SamplesHandler {
	if a == nil {
		a = alphabet.Default()
	}
	return &SamplesHandler{store: s, alphabet: a}
}

// ServeHTTP handles GET, POST and DELETE /api/samples.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		methodNotAllowed(w)
	}
}

type createSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type sampleResponse struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Features  []float64 `json:"features"`
	CreatedAt string    `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type labelCountsResponse struct {
	Labels map[string]int `json:"labels"`
}

// label maps a label from a request to its stored form.
func (h *SamplesHandler) label(raw string) string {
	if r, ok := h.alphabet.Normalize(raw); ok {
		return string(r)
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// list handles GET /api/samples. Without ?label it returns the count per
// label; with it, the samples of that label.
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("label")
	if raw == "" {
		counts, err := h.store.Samples().Labels()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count samples")
			return
		}
		writeJSON(w, http.StatusOK, labelCountsResponse{Labels: counts})
		return
	}

	samples, err := h.store.Samples().ListByLabel(h.label(raw))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:        s.ID,
			Label:     s.Label,
			Features:  s.Features,
			CreatedAt: s.CreatedAt.Format(timeFormat),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/samples. Each sample carries its own label and
// either a feature vector or the 21 raw landmarks.
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSamplesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}

	byLabel := make(map[string][][]float64)
	var order []string
	for i, raw := range req.Samples {
		s, err := classifier.ParseSample(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Sample %d: %v", i, err))
			return
		}
		label := h.label(s.Label)
		if label == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Sample %d: empty label", i))
			return
		}
		if _, ok := byLabel[label]; !ok {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], s.Features)
	}

	for _, label := range order {
		if err := h.store.Samples().Create(label, byLabel[label]); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save samples")
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]int{"created": len(req.Samples)})
}

// delete handles DELETE /api/samples?label=X.
func (h *SamplesHandler) delete(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("label")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	removed, err := h.store.Samples().DeleteByLabel(h.label(raw))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": removed})
}
