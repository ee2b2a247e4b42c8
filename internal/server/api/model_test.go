package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/detector"
)

func TestModelHandler_Train(t *testing.T) {
	s := newTestStore(t)
	a := newTestApp(t, s)
	modelPath := filepath.Join(t.TempDir(), "model.json")

	handler := NewModelHandler(s, a, modelPath, classifier.DefaultTrainOptions())
	mux := http.NewServeMux()
	handler.Register(mux)

	rec := do(t, mux, http.MethodGet, "/api/model", nil)
	var info modelResponse
	decode(t, rec, &info)
	if info.Loaded {
		t.Error("expected no model before training")
	}

	t.Run("needs two labels", func(t *testing.T) {
		hand := detector.LetterALandmarks()
		if err := s.Samples().Create("A", [][]float64{hand.Features()}); err != nil {
			t.Fatalf("failed to create samples: %v", err)
		}
		rec := do(t, mux, http.MethodPost, "/api/model/train", nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
		}
	})

	for label, hand := range map[string]detector.HandLandmarks{
		"A": detector.LetterALandmarks(),
		"B": detector.LetterBLandmarks(),
		"L": detector.LetterLLandmarks(),
	} {
		features := [][]float64{hand.Features(), hand.Features(), hand.Features()}
		if err := s.Samples().Create(label, features); err != nil {
			t.Fatalf("failed to create samples: %v", err)
		}
	}

	rec = do(t, mux, http.MethodPost, "/api/model/train", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	decode(t, rec, &info)
	if !info.Loaded || len(info.Labels) != 3 || info.Samples != 10 {
		t.Errorf("unexpected model info %+v", info)
	}

	if _, err := os.Stat(modelPath); err != nil {
		t.Errorf("expected model file to be written: %v", err)
	}

	cls := a.Classifier()
	if cls == nil {
		t.Fatal("expected the trained classifier to be installed")
	}
	b := detector.LetterBLandmarks()
	pred, err := cls.Classify(b.Features())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Label != 'B' {
		t.Errorf("expected B, got %q", pred.Class)
	}

	rec = do(t, mux, http.MethodGet, "/api/model/train", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestModelHandler_FeatureMismatch(t *testing.T) {
	s := newTestStore(t)
	a := newTestApp(t, s)
	handler := NewModelHandler(s, a, "", classifier.DefaultTrainOptions())

	s.Samples().Create("A", [][]float64{{1, 2, 3}})
	s.Samples().Create("B", [][]float64{{1, 2}})

	rec := do(t, http.HandlerFunc(handler.handleTrain), http.MethodPost, "/api/model/train", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
	if a.Classifier() != nil {
		t.Error("failed training should not install a classifier")
	}
}

func TestModelHandler_RejectsForeignFeatureCount(t *testing.T) {
	s := newTestStore(t)
	a := newTestApp(t, s)
	modelPath := filepath.Join(t.TempDir(), "model.json")
	handler := NewModelHandler(s, a, modelPath, classifier.DefaultTrainOptions())

	// samples stored before vectors were checked on upload
	s.Samples().Create("A", [][]float64{{1, 2}, {1, 3}})
	s.Samples().Create("B", [][]float64{{3, 4}, {4, 4}})

	rec := do(t, http.HandlerFunc(handler.handleTrain), http.MethodPost, "/api/model/train", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}
	if a.Classifier() != nil {
		t.Error("a model the detector cannot feed should not be installed")
	}
	if _, err := os.Stat(modelPath); !os.IsNotExist(err) {
		t.Errorf("model file should not be written, stat error = %v", err)
	}
}
