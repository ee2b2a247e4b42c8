package app

import (
	"context"
	"log"
	"time"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/plugin"
	"github.com/ayusman/fingerspell/internal/stabilizer"
)

// Result is what the stabilizer did with one observation.
type Result struct {
	Committed bool             `json:"committed"`
	Commit    *Event           `json:"commit,omitempty"`
	State     stabilizer.State `json:"-"`
}

// request is one unit of work for the observation loop. Exactly one of obs and
// fn is set.
type request struct {
	obs   *stabilizer.Observation
	hand  *detector.HandLandmarks
	fn    func()
	reply chan Result
}

// loop serializes every access to the stabilizer, the session and the
// transcript writes that go with them.
func (a *App) loop() {
	defer close(a.loopDone)

	for {
		select {
		case <-a.closeCh:
			return
		case req := <-a.requests:
			if req.fn != nil {
				req.fn()
				if req.reply != nil {
					close(req.reply)
				}
				continue
			}
			res := a.observe(*req.obs, req.hand)
			if req.reply != nil {
				req.reply <- res
			}
		}
	}
}

// observe runs on the loop goroutine.
func (a *App) observe(obs stabilizer.Observation, hand *detector.HandLandmarks) Result {
	detected := a.stab.Config().Alphabet.Contains(obs.Label)
	a.stats.Add(obs.Confidence, obs.HasConfidence, detected)

	commit, ok := a.stab.Observe(obs)
	state := a.stab.State()
	now := time.Now()

	a.listeners.publish(Event{
		Type:       EventObservation,
		Session:    a.session,
		Letter:     labelString(obs.Label),
		Confidence: confidencePtr(obs.Confidence, obs.HasConfidence),
		Candidate:  labelString(state.Candidate),
		Streak:     state.Streak,
		Hand:       hand,
		Text:       a.transcript.String(),
		Time:       now,
	})

	if !ok {
		return Result{State: state}
	}

	event := a.applyCommit(commit, now)
	return Result{Committed: true, Commit: &event, State: state}
}

// applyCommit appends a commit to the transcript and forwards it to every sink.
func (a *App) applyCommit(c stabilizer.Commit, now time.Time) Event {
	a.transcript.Apply(c)
	a.seq++
	a.stats.AddCommit()

	text := a.transcript.String()
	event := Event{
		Type:       EventCommit,
		Session:    a.session,
		Seq:        a.seq,
		Letter:     string(c.Letter),
		Confidence: confidencePtr(c.Confidence, c.HasConfidence),
		Text:       text,
		Time:       now,
	}

	log.Printf("Committed %q (session %s, #%d)", c.Letter, a.session, a.seq)

	if st := a.config.Store; st != nil {
		if _, err := st.Sessions().AppendCommit(a.session, c.Letter, c.Confidence, c.HasConfidence); err != nil {
			log.Printf("Failed to record commit: %v", err)
		}
		if err := st.Sessions().UpdateText(a.session, text); err != nil {
			log.Printf("Failed to update session text: %v", err)
		}
	}

	if a.config.Plugins != nil {
		delimiter := c.Delimiter
		a.config.Plugins.Send(&plugin.Request{
			Action:    plugin.ActionCommit,
			Letter:    event.Letter,
			Delimiter: &delimiter,
			Text:      text,
			Session:   a.session,
		})
	}

	a.listeners.publish(event)
	return event
}

// Observe queues an observation for the stabilizer. It blocks only while the
// queue is full and reports false once the App is closed.
func (a *App) Observe(obs stabilizer.Observation) bool {
	return a.enqueue(request{obs: &obs})
}

func (a *App) observeHand(obs stabilizer.Observation, hand *detector.HandLandmarks) bool {
	return a.enqueue(request{obs: &obs, hand: hand})
}

func (a *App) enqueue(req request) bool {
	select {
	case <-a.closeCh:
		return false
	default:
	}
	select {
	case a.requests <- req:
		return true
	case <-a.closeCh:
		return false
	}
}

// ObserveWait feeds an observation and waits for the stabilizer's answer.
func (a *App) ObserveWait(ctx context.Context, obs stabilizer.Observation) (Result, error) {
	reply := make(chan Result, 1)
	if err := a.send(ctx, request{obs: &obs, reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-a.loopDone:
		return Result{}, ErrClosed
	}
}

// do runs fn on the observation loop and waits for it to finish.
func (a *App) do(ctx context.Context, fn func()) error {
	reply := make(chan Result)
	if err := a.send(ctx, request{fn: fn, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.loopDone:
		return ErrClosed
	}
}

func (a *App) send(ctx context.Context, req request) error {
	select {
	case <-a.closeCh:
		return ErrClosed
	default:
	}
	select {
	case a.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.closeCh:
		return ErrClosed
	}
}

// Flush waits until every observation queued before the call has been processed.
func (a *App) Flush(ctx context.Context) error {
	return a.do(ctx, func() {})
}

// ResetStabilizer clears the candidate and streak without touching the transcript.
func (a *App) ResetStabilizer(ctx context.Context) error {
	return a.do(ctx, func() {
		a.stab.Reset()
	})
}

// State returns the stabilizer's candidate and streak.
func (a *App) State(ctx context.Context) (stabilizer.State, error) {
	var state stabilizer.State
	err := a.do(ctx, func() {
		state = a.stab.State()
	})
	return state, err
}

// Session returns the id of the current translation session.
func (a *App) Session(ctx context.Context) (string, error) {
	var id string
	err := a.do(ctx, func() {
		id = a.session
	})
	return id, err
}

// NewSession starts a new translation: the current session is ended with its
// final text, the stabilizer is reset and the transcript is cleared.
// It returns the new session id.
func (a *App) NewSession(ctx context.Context) (string, error) {
	var id string
	err := a.do(ctx, func() {
		a.endSession()
		a.stab.Reset()
		a.sampler.Reset()
		a.transcript.Clear()
		a.openSession()
		id = a.session

		if a.config.Plugins != nil {
			a.config.Plugins.Send(&plugin.Request{
				Action:  plugin.ActionClear,
				Session: id,
			})
		}

		a.listeners.publish(Event{
			Type:    EventClear,
			Session: id,
			Time:    time.Now(),
		})
		log.Printf("Started new translation %s", id)
	})
	return id, err
}

// EditTranscript replaces the transcript with text edited by the user.
// Later commits append to the edited text.
func (a *App) EditTranscript(ctx context.Context, text string) error {
	return a.do(ctx, func() {
		a.transcript.Replace(text)

		if st := a.config.Store; st != nil {
			if err := st.Sessions().UpdateText(a.session, text); err != nil {
				log.Printf("Failed to update session text: %v", err)
			}
		}

		a.listeners.publish(Event{
			Type:    EventEdit,
			Session: a.session,
			Text:    text,
			Time:    time.Now(),
		})
	})
}
