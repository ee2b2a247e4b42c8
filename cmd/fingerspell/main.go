package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/config"
	"github.com/ayusman/fingerspell/internal/plugin"
	"github.com/ayusman/fingerspell/internal/server"
	"github.com/ayusman/fingerspell/internal/stabilizer"
	"github.com/ayusman/fingerspell/internal/store"
	"github.com/ayusman/fingerspell/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.fingerspell/config.yaml)")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	dataDir := flag.String("data", "", "data directory, overrides data_dir")
	headless := flag.Bool("headless", false, "run without the system tray and start translating immediately")
	flag.Parse()

	fmt.Println("Fingerspell - ASL Fingerspelling Translator")

	path := *configPath
	if path == "" && *dataDir != "" {
		path = filepath.Join(*dataDir, config.FileName)
	}
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			log.Fatalf("Failed to locate config: %v", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.SetDataDir(*dataDir)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize the store
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	applySettings(cfg, st)
	stabCfg := cfg.StabilizerConfig()

	cls, err := loadClassifier(cfg.Classifier.ModelPath, stabCfg, st)
	if err != nil {
		log.Printf("Failed to load model: %v", err)
	}

	dispatcher, err := startPlugins(cfg)
	if err != nil {
		log.Printf("Failed to load plugins: %v", err)
	}

	a := app.New(app.Config{
		Store:          st,
		CameraConfig:   cfg.CameraConfig(),
		MotionThresh:   cfg.Motion.Threshold,
		SampleEvery:    cfg.Sampler.EveryN,
		SampleInterval: cfg.Sampler.MinInterval,
		DetectorConfig: cfg.DetectorConfig(),
		Classifier:     cls,
		Stabilizer:     stabCfg,
		Plugins:        dispatcher,
	})
	defer a.Close()

	// Find web directory
	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:    webDir,
		Store:        st,
		App:          a,
		ModelPath:    cfg.Classifier.ModelPath,
		TrainOptions: cfg.TrainOptions(),
	})
	defer srv.Close()

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if err := a.Start(); err != nil {
		log.Printf("Camera unavailable, accepting observations over HTTP only: %v", err)
	}

	if *headless {
		a.SetEnabled(true)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		<-ctx.Done()
		stop()
		log.Println("Shutting down")
		return
	}

	runTray(a, settingsURL(cfg.Server.Addr))
}

// applySettings overrides the YAML configuration with values saved from the
// settings page.
func applySettings(cfg *config.Config, st *store.Store) {
	settings := st.Settings()
	cfg.Stabilizer.CommitThreshold = settings.GetInt(store.SettingCommitThreshold, cfg.Stabilizer.CommitThreshold)
	cfg.Stabilizer.MinConfidence = settings.GetFloat(store.SettingMinConfidence, cfg.Stabilizer.MinConfidence)
	cfg.Sampler.EveryN = settings.GetInt(store.SettingSampleEvery, cfg.Sampler.EveryN)
}

// loadClassifier loads the trained model if one exists. Without a model, the
// recorded samples are matched directly. Having neither is not an error:
// letters can still arrive on POST /api/observations.
func loadClassifier(path string, stabCfg stabilizer.Config, st *store.Store) (classifier.Classifier, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return sampleClassifier(st, stabCfg)
	}

	model, err := classifier.Load(path)
	if err != nil {
		return nil, err
	}
	if err := classifier.CheckFeatureCount(model.FeatureCount); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	lr, err := classifier.NewLogisticRegression(model, stabCfg.Alphabet)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded model with %d labels from %s", len(model.Labels), path)
	return lr, nil
}

// sampleClassifier builds a nearest-template classifier from stored samples.
func sampleClassifier(st *store.Store, stabCfg stabilizer.Config) (classifier.Classifier, error) {
	stored, err := st.Samples().List()
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		log.Println("No model or samples yet; record samples from the settings page")
		return nil, nil
	}

	samples := make([]classifier.Sample, 0, len(stored))
	for _, s := range stored {
		samples = append(samples, classifier.Sample{Label: s.Label, Features: s.Features})
	}
	c, err := classifier.NewCentroid(samples, stabCfg.Alphabet)
	if err != nil {
		return nil, err
	}
	if err := classifier.CheckFeatureCount(c.FeatureCount()); err != nil {
		return nil, fmt.Errorf("recorded samples: %w", err)
	}
	log.Printf("No trained model; matching against %d recorded labels", len(c.Labels()))
	return c, nil
}

// startPlugins discovers the plugin directory and starts a dispatcher for the
// enabled plugins. It returns nil when none are enabled.
func startPlugins(cfg *config.Config) (*plugin.Dispatcher, error) {
	if len(cfg.Plugins.Enabled) == 0 {
		return nil, nil
	}

	manager := plugin.NewManager(cfg.Plugins.Dir)
	if err := manager.Discover(); err != nil {
		return nil, err
	}

	selected := manager.Select(cfg.Plugins.Enabled)
	if len(selected) == 0 {
		return nil, nil
	}
	for _, p := range selected {
		raw, err := cfg.PluginConfig(p.Manifest.Name)
		if err != nil {
			return nil, err
		}
		p.Config = raw
		log.Printf("Plugin %s %s enabled", p.Manifest.Name, p.Manifest.Version)
	}
	return plugin.NewDispatcher(selected, plugin.NewExecutor(cfg.Plugins.TimeoutMs)), nil
}

// runTray shows the menu bar item and blocks until Quit.
func runTray(a *app.App, url string) {
	t := tray.New()
	a.SetEnabled(t.IsEnabled())

	t.OnToggle(a.SetEnabled)
	t.OnNewTranslation(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := a.NewSession(ctx); err != nil {
			log.Printf("Failed to start new translation: %v", err)
		}
	})
	t.OnSettings(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Failed to open settings: %v", err)
		}
	})
	t.OnQuit(func() {
		log.Println("Shutting down")
	})

	unsubscribe := a.Subscribe(func(e app.Event) {
		switch e.Type {
		case app.EventCommit:
			t.SetLastLetter(e.Letter)
			t.SetText(e.Text)
		case app.EventClear:
			t.SetLastLetter("")
			t.SetText("")
		case app.EventEdit:
			t.SetText(e.Text)
		}
	})
	defer unsubscribe()

	t.Run()
}

// settingsURL turns a listen address into a browser URL.
func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and web inside the data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
