// Package app runs the fingerspelling pipeline: camera frames are sampled,
// classified and fed to the letter stabilizer, and commits are published to
// the transcript, the store, plugins and listeners.
package app

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/fingerspell/internal/capture"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/plugin"
	"github.com/ayusman/fingerspell/internal/stabilizer"
	"github.com/ayusman/fingerspell/internal/store"
	"github.com/ayusman/fingerspell/internal/transcript"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while the hand is moving or held up.
	ActiveFPS = 15
	// IdleTimeoutMs is the time in milliseconds to wait before switching back to idle mode.
	IdleTimeoutMs = 2000
)

// observationQueueSize bounds observations waiting for the loop.
const observationQueueSize = 32

// ErrClosed is returned by operations on a closed App.
var ErrClosed = errors.New("app is closed")

// Config holds configuration options for the application.
type Config struct {
	Store *store.Store

	// Camera defaults to a device camera built from CameraConfig.
	Camera       capture.Camera
	CameraConfig capture.CameraConfig
	MotionThresh float64

	SampleEvery    int
	SampleInterval time.Duration

	// Detector defaults to MediaPipe, or the mock detector when MediaPipe is unavailable.
	Detector       detector.Detector
	DetectorConfig detector.Config

	// Classifier may be nil until a model is trained or loaded.
	Classifier classifier.Classifier

	// Stabilizer defaults to stabilizer.DefaultConfig when left zero. A
	// partial config is used as given.
	Stabilizer stabilizer.Config

	// Plugins receive commits. The App stops the dispatcher on Close.
	Plugins *plugin.Dispatcher
}

// App owns the stabilizer and everything that feeds or listens to it.
type App struct {
	config     Config
	camera     capture.Camera
	motion     *capture.MotionDetector
	sampler    *capture.Sampler
	detector   detector.Detector
	classifier classifier.Classifier
	transcript *transcript.Buffer
	stats      *ConfidenceStats
	listeners  listeners

	// Owned by the loop goroutine.
	stab    *stabilizer.Stabilizer
	session string
	seq     int

	requests  chan request
	closeCh   chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	enabled      bool
	mu           sync.RWMutex
	stopCh       chan struct{}
	pipelineDone chan struct{}

	frameMu   sync.RWMutex
	lastFrame []byte
}

// New creates an App and starts its observation loop. A session is opened
// immediately so observations can arrive before the camera is started.
func New(config Config) *App {
	motionThreshold := config.MotionThresh
	if motionThreshold <= 0 {
		motionThreshold = 1.0 // 1% pixel change
	}

	if config.Stabilizer == (stabilizer.Config{}) {
		config.Stabilizer = stabilizer.DefaultConfig()
	}
	stab := stabilizer.New(config.Stabilizer)

	a := &App{
		config:     config,
		camera:     config.Camera,
		motion:     capture.NewMotionDetector(motionThreshold),
		sampler:    capture.NewSampler(config.SampleEvery, config.SampleInterval),
		detector:   config.Detector,
		classifier: config.Classifier,
		transcript: transcript.New(),
		stats:      NewConfidenceStats(stab.Config().MinConfidence),
		stab:       stab,
		requests:   make(chan request, observationQueueSize),
		closeCh:    make(chan struct{}),
		loopDone:   make(chan struct{}),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraConfig)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(config.DetectorConfig); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	a.openSession()

	go a.loop()
	return a
}

// openSession starts a new session id and records it. Called before the loop
// starts or from the loop.
func (a *App) openSession() {
	a.session = uuid.NewString()
	a.seq = 0

	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Sessions().Create(&store.Session{ID: a.session}); err != nil {
		log.Printf("Failed to record session %s: %v", a.session, err)
	}
}

// endSession records the final transcript of the current session.
func (a *App) endSession() {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Sessions().End(a.session, a.transcript.String()); err != nil {
		log.Printf("Failed to end session %s: %v", a.session, err)
	}
}

// SetEnabled enables or disables frame processing.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether frame processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the hand detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetClassifier replaces the classifier, for example after training a new model.
func (a *App) SetClassifier(c classifier.Classifier) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.classifier = c
}

// Classifier returns the current classifier, or nil if none is loaded.
func (a *App) Classifier() classifier.Classifier {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.classifier
}

// Subscribe registers fn for every event and returns a function that removes it.
func (a *App) Subscribe(fn Listener) func() {
	return a.listeners.add(fn)
}

// Transcript returns the current translated text.
func (a *App) Transcript() string {
	return a.transcript.String()
}

// Stats returns the confidence distribution observed so far.
func (a *App) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

// StabilizerConfig returns the stabilizer settings in use.
func (a *App) StabilizerConfig() stabilizer.Config {
	return a.stab.Config()
}

// Start opens the camera and begins the capture pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.camera.SetFPS(IdleFPS)
	a.sampler.Reset()

	a.stopCh = make(chan struct{})
	a.pipelineDone = make(chan struct{})
	go a.runPipeline(a.stopCh, a.pipelineDone)

	log.Println("Capture pipeline started")
	return nil
}

// Stop halts the capture pipeline and releases the camera.
// The observation loop keeps running.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.pipelineDone
	a.stopCh, a.pipelineDone = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Close()

	log.Println("Capture pipeline stopped")
}

// Close stops the pipeline and the observation loop, ends the session and
// releases the detector and plugins.
func (a *App) Close() error {
	a.Stop()

	a.closeOnce.Do(func() {
		close(a.closeCh)
	})
	<-a.loopDone

	a.endSession()

	if a.config.Plugins != nil {
		a.config.Plugins.Stop()
	}

	if d := a.Detector(); d != nil {
		return d.Close()
	}
	return nil
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// MotionDetector returns the motion detector instance.
func (a *App) MotionDetector() *capture.MotionDetector {
	return a.motion
}
