package main

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/config"
	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/stabilizer"
	"github.com/ayusman/fingerspell/internal/store"
)

func TestApplySettings(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	cfg := config.Default()
	st.Settings().Set(store.SettingCommitThreshold, "6")
	st.Settings().Set(store.SettingMinConfidence, "0.8")

	applySettings(cfg, st)

	if cfg.Stabilizer.CommitThreshold != 6 {
		t.Errorf("CommitThreshold = %d, want 6", cfg.Stabilizer.CommitThreshold)
	}
	if cfg.Stabilizer.MinConfidence != 0.8 {
		t.Errorf("MinConfidence = %v, want 0.8", cfg.Stabilizer.MinConfidence)
	}
	if cfg.Sampler.EveryN != 10 {
		t.Errorf("EveryN = %d, want the default 10", cfg.Sampler.EveryN)
	}
}

func TestLoadClassifier(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	t.Run("missing model", func(t *testing.T) {
		cls, err := loadClassifier(filepath.Join(dir, "missing.json"), stabilizer.DefaultConfig(), st)
		if err != nil || cls != nil {
			t.Errorf("loadClassifier() = %v, %v, want nil, nil", cls, err)
		}
	})

	t.Run("recorded samples without model", func(t *testing.T) {
		l := detector.LetterLLandmarks()
		if err := st.Samples().Create("L", [][]float64{l.Features()}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		cls, err := loadClassifier(filepath.Join(dir, "missing.json"), stabilizer.DefaultConfig(), st)
		if err != nil {
			t.Fatalf("loadClassifier() error = %v", err)
		}
		if _, ok := cls.(*classifier.Centroid); !ok {
			t.Errorf("loadClassifier() = %T, want *classifier.Centroid", cls)
		}
	})

	t.Run("trained model", func(t *testing.T) {
		a, b := detector.LetterALandmarks(), detector.LetterBLandmarks()
		model, err := classifier.NewTrainer(classifier.DefaultTrainOptions()).Train([]classifier.Sample{
			{Label: "A", Features: a.Features()},
			{Label: "B", Features: b.Features()},
		})
		if err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		path := filepath.Join(dir, "model.json")
		if err := classifier.Save(path, model); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		cls, err := loadClassifier(path, stabilizer.DefaultConfig(), st)
		if err != nil || cls == nil {
			t.Fatalf("loadClassifier() = %v, %v", cls, err)
		}
	})

	t.Run("model for another feature layout", func(t *testing.T) {
		model, err := classifier.NewTrainer(classifier.DefaultTrainOptions()).Train([]classifier.Sample{
			{Label: "A", Features: []float64{1, 2}},
			{Label: "B", Features: []float64{3, 4}},
		})
		if err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		path := filepath.Join(dir, "short.json")
		if err := classifier.Save(path, model); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		cls, err := loadClassifier(path, stabilizer.DefaultConfig(), st)
		if !errors.Is(err, classifier.ErrFeatureMismatch) || cls != nil {
			t.Errorf("loadClassifier() = %v, %v, want ErrFeatureMismatch", cls, err)
		}
	})

	t.Run("corrupt model", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.json")
		os.WriteFile(path, []byte("{"), 0644)
		if _, err := loadClassifier(path, stabilizer.DefaultConfig(), st); err == nil {
			t.Error("expected an error for a corrupt model")
		}
	})
}

func TestLoadClassifier_ForeignSamples(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	st.Samples().Create("A", [][]float64{{1, 2}})

	cls, err := loadClassifier(filepath.Join(t.TempDir(), "missing.json"), stabilizer.DefaultConfig(), st)
	if !errors.Is(err, classifier.ErrFeatureMismatch) || cls != nil {
		t.Errorf("loadClassifier() = %v, %v, want ErrFeatureMismatch", cls, err)
	}
}

func TestSettingsURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080/"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000/"},
	}

	for _, tt := range tests {
		if got := settingsURL(tt.addr); got != tt.want {
			t.Errorf("settingsURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestStartPlugins_NoneEnabled(t *testing.T) {
	cfg := config.Default()
	d, err := startPlugins(cfg)
	if err != nil || d != nil {
		t.Errorf("startPlugins() = %v, %v, want nil, nil", d, err)
	}
}

func TestStartPlugins_PassesConfig(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "recorder")
	os.MkdirAll(pluginDir, 0755)
	os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(`{"name":"recorder","executable":"run.sh"}`), 0644)
	os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte("#!/bin/sh\ncat > /dev/null\necho '{\"success\":true}'\n"), 0755)

	cfg := config.Default()
	cfg.Plugins.Dir = dir
	cfg.Plugins.Enabled = []string{"recorder"}
	cfg.Plugins.Config = map[string]map[string]any{"recorder": {"delimiter": "-"}}

	d, err := startPlugins(cfg)
	if err != nil || d == nil {
		t.Fatalf("startPlugins() = %v, %v", d, err)
	}
	defer d.Stop()

	plugins := d.Plugins()
	if len(plugins) != 1 {
		t.Fatalf("started %d plugins, want 1", len(plugins))
	}
	if string(plugins[0].Config) != `{"delimiter":"-"}` {
		t.Errorf("plugin config = %s, want {\"delimiter\":\"-\"}", plugins[0].Config)
	}
}
