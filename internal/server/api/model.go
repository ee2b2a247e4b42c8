package api

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/ayusman/fingerspell/internal/alphabet"
	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/store"
)

// ModelHandler trains the letter classifier from stored samples and installs it.
type ModelHandler struct {
	store     *store.Store
	app       *app.App
	alphabet  *alphabet.Alphabet
	modelPath string
	opts      classifier.TrainOptions

	// training serializes POST /api/model/train.
	training sync.Mutex
}

// NewModelHandler creates a ModelHandler. The trained model is written to
// modelPath when it is not empty.
func NewModelHandler(s *store.Store, a *app.App, modelPath string, opts classifier.TrainOptions) *ModelHandler {
	return &ModelHandler{
		store:     s,
		app:       a,
		alphabet:  a.StabilizerConfig().Alphabet,
		modelPath: modelPath,
		opts:      opts,
	}
}

// Register adds the model routes to mux.
func (h *ModelHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/model", h.handleModel)
	mux.HandleFunc("/api/model/train", h.handleTrain)
}

type modelResponse struct {
	Loaded       bool     `json:"loaded"`
	Kind         string   `json:"kind,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	FeatureCount int      `json:"feature_count,omitempty"`
	Samples      int      `json:"samples,omitempty"`
}

// handleModel handles GET /api/model.
func (h *ModelHandler) handleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	switch c := h.app.Classifier().(type) {
	case nil:
		writeJSON(w, http.StatusOK, modelResponse{Loaded: false})
	case *classifier.LogisticRegression:
		m := c.Model()
		writeJSON(w, http.StatusOK, modelResponse{
			Loaded:       true,
			Kind:         "logistic",
			Labels:       m.Labels,
			FeatureCount: m.FeatureCount,
		})
	case *classifier.Centroid:
		writeJSON(w, http.StatusOK, modelResponse{
			Loaded: true,
			Kind:   "centroid",
			Labels: c.Labels(),
		})
	default:
		writeJSON(w, http.StatusOK, modelResponse{Loaded: true})
	}
}

// handleTrain handles POST /api/model/train.
func (h *ModelHandler) handleTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	h.training.Lock()
	defer h.training.Unlock()

	stored, err := h.store.Samples().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}

	samples := make([]classifier.Sample, 0, len(stored))
	for _, s := range stored {
		samples = append(samples, classifier.Sample{Label: s.Label, Features: s.Features})
	}

	model, err := classifier.NewTrainer(h.opts).Train(samples)
	if err == nil {
		err = classifier.CheckFeatureCount(model.FeatureCount)
	}
	if err != nil {
		if errors.Is(err, classifier.ErrFeatureMismatch) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	lr, err := classifier.NewLogisticRegression(model, h.alphabet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.modelPath != "" {
		if err := classifier.Save(h.modelPath, model); err != nil {
			log.Printf("Failed to save model: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to save model")
			return
		}
	}

	h.app.SetClassifier(lr)
	log.Printf("Trained model on %d samples (%d labels)", len(samples), len(model.Labels))

	writeJSON(w, http.StatusOK, modelResponse{
		Loaded:       true,
		Kind:         "logistic",
		Labels:       model.Labels,
		FeatureCount: model.FeatureCount,
		Samples:      len(samples),
	})
}
