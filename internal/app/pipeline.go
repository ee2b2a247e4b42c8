package app

import (
	"errors"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerspell/internal/stabilizer"
)

// runPipeline is the capture loop. It reads frames from the camera, keeps the
// latest frame for the preview stream and hands them to ProcessFrame.
//
// Pipeline logic:
//  1. Start in idle mode (IdleFPS)
//  2. On motion, switch to active mode (ActiveFPS)
//  3. After IdleTimeoutMs without motion, switch back to idle mode
//  4. Every frame goes through the sampler; admitted frames are classified
//
// A held letter produces no motion, so idle mode only lowers the frame rate
// and never stops classification.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	activeMode := false
	lastMotionTime := time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(IdleFPS))
	defer ticker.Stop()

	setMode := func(active bool) {
		activeMode = active
		fps := IdleFPS
		if active {
			fps = ActiveFPS
		}
		a.camera.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			a.keepFrame(frame)

			if moved, _ := a.motion.Detect(frame); moved {
				lastMotionTime = time.Now()
				if !activeMode {
					setMode(true)
					log.Println("Switched to active mode")
				}
			} else if activeMode && time.Since(lastMotionTime) > time.Duration(IdleTimeoutMs)*time.Millisecond {
				setMode(false)
				log.Println("Switched to idle mode")
			}

			if err := a.ProcessFrame(frame); err != nil && !errors.Is(err, ErrClosed) {
				log.Printf("Error processing frame: %v", err)
			}
			frame.Close()
		}
	}
}

// ProcessFrame runs one captured frame through the sampler, detector and
// classifier and queues the resulting observation. Frames the sampler skips
// and frames that cannot be classified produce no observation.
func (a *App) ProcessFrame(frame *gocv.Mat) error {
	if !a.sampler.Admit() {
		return nil
	}

	det := a.Detector()
	if det == nil {
		return nil
	}

	hands, err := det.Detect(frame)
	if err != nil {
		return err
	}

	if len(hands) == 0 {
		if !a.Observe(stabilizer.NoDetection()) {
			return ErrClosed
		}
		return nil
	}

	cls := a.Classifier()
	if cls == nil {
		return nil
	}

	hand := hands[0]
	prediction, err := cls.Classify(hand.Features())
	if err != nil {
		return err
	}

	if !a.observeHand(prediction.Observation(), &hand) {
		return ErrClosed
	}
	return nil
}

// keepFrame stores frame as JPEG for the preview stream.
func (a *App) keepFrame(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.frameMu.Lock()
	a.lastFrame = data
	a.frameMu.Unlock()
}

// LatestJPEG returns the most recent camera frame encoded as JPEG.
func (a *App) LatestJPEG() ([]byte, bool) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.lastFrame, a.lastFrame != nil
}
