// Package session orchestrates a dictation cycle: capture, transcription,
// polishing, injection and persistence. One session runs at a time.
package session

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vowrite/vowrite/internal/apierr"
	"github.com/vowrite/vowrite/internal/history"
	"github.com/vowrite/vowrite/internal/inject"
	. "github.com/vowrite/vowrite/internal/logging"
)

// State is the dictation session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateError      State = "error"
)

// Status is the observable session state. Message is set only for StateError.
type Status struct {
	State   State
	Message string
}

// Recorder captures microphone audio into a temporary file.
type Recorder interface {
	Start() error
	Stop() (path string, seconds float64, err error)
	Cancel() error
	Level() float64
}

// Transcriber converts a recorded audio file into text. It owns the cleanup
// of the audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Polisher rewrites a raw transcript into clean text.
type Polisher interface {
	Polish(ctx context.Context, text, systemPrompt string) (string, error)
}

// Injector delivers the final text into the previously focused application.
type Injector interface {
	SaveFocusTarget()
	Inject(text string) inject.Result
}

// Store persists completed dictations and usage counters.
type Store interface {
	Append(rec history.Record) (history.Record, error)
	AddUsage(seconds float64, words int) error
}

// Notifier surfaces session feedback to the user.
type Notifier interface {
	RecordingStarted()
	Succeeded(text string)
	Failed(message string)
}

// Permissions answers microphone access requests. The callback may run
// asynchronously; the session proceeds only if granted.
type Permissions interface {
	RequestMicrophone(func(granted bool))
}

// Options carries the injected collaborators. All fields except OnState are
// required.
type Options struct {
	Recorder    Recorder
	Transcriber Transcriber
	Polisher    Polisher
	Injector    Injector
	Store       Store
	Notifier    Notifier
	Permissions Permissions

	// SystemPrompt resolves the effective polish prompt at pipeline time, so
	// config changes between dictations take effect without a rebuild.
	SystemPrompt func() string

	// HasCredentials gates the pipeline before any network call.
	HasCredentials func() bool

	// OnState observes every status change. Optional.
	OnState func(Status)
}

// Session is the dictation state machine.
type Session struct {
	opts Options

	mu        sync.Mutex
	status    Status
	startedAt time.Time

	pipelineWG sync.WaitGroup
}

func New(opts Options) *Session {
	return &Session{
		opts:   opts,
		status: Status{State: StateIdle},
	}
}

// Status returns the current observable state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Elapsed reports how long the current recording has been running.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != StateRecording {
		return 0
	}
	return time.Since(s.startedAt)
}

// Level reports the live input meter value while recording.
func (s *Session) Level() float64 {
	if s.Status().State != StateRecording {
		return 0
	}
	return s.opts.Recorder.Level()
}

// Toggle advances the session from a hotkey press: start when idle or errored,
// stop when recording, ignore while processing.
func (s *Session) Toggle() {
	switch s.Status().State {
	case StateIdle, StateError:
		s.Start()
	case StateRecording:
		s.Stop()
	case StateProcessing:
		L_debug("session: toggle ignored while processing")
	}
}

// Start begins a new recording. No-op unless the session is idle or errored.
func (s *Session) Start() {
	if st := s.Status().State; st != StateIdle && st != StateError {
		L_debug("session: start ignored", "state", st)
		return
	}

	s.opts.Permissions.RequestMicrophone(func(granted bool) {
		if !granted {
			s.fail("microphone access denied, enable it in System Settings")
			return
		}
		s.beginRecording()
	})
}

func (s *Session) beginRecording() {
	// Permission callbacks can arrive late; never stack a second recording.
	if st := s.Status().State; st != StateIdle && st != StateError {
		L_debug("session: permission granted but state moved on", "state", st)
		return
	}

	// The focus target must be captured before recording starts, while the
	// user's editor is still frontmost.
	s.opts.Injector.SaveFocusTarget()

	if err := s.opts.Recorder.Start(); err != nil {
		L_error("session: capture failed to start", "error", err)
		s.fail("recording failed, check microphone permissions")
		return
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.setStatus(Status{State: StateRecording})
	s.opts.Notifier.RecordingStarted()
}

// Stop ends the recording and runs the processing pipeline in the background.
// No-op unless recording.
func (s *Session) Stop() {
	if st := s.Status().State; st != StateRecording {
		L_debug("session: stop ignored", "state", st)
		return
	}

	path, seconds, err := s.opts.Recorder.Stop()
	if err != nil || path == "" {
		L_error("session: no usable recording", "error", err)
		s.fail("no audio captured")
		return
	}

	s.setStatus(Status{State: StateProcessing})
	s.pipelineWG.Add(1)
	go func() {
		defer s.pipelineWG.Done()
		s.runPipeline(path, seconds)
	}()
}

// Cancel discards the current recording. Legal only while recording.
func (s *Session) Cancel() {
	if st := s.Status().State; st != StateRecording {
		L_debug("session: cancel ignored", "state", st)
		return
	}

	if err := s.opts.Recorder.Cancel(); err != nil {
		L_warn("session: cancel teardown failed", "error", err)
	}
	s.setStatus(Status{State: StateIdle})
	s.opts.Notifier.Failed("dictation cancelled")
	L_info("session: recording cancelled, nothing saved")
}

// Wait blocks until any in-flight pipeline finishes.
func (s *Session) Wait() {
	s.pipelineWG.Wait()
}

func (s *Session) runPipeline(audioPath string, seconds float64) {
	ctx := context.Background()

	if !s.opts.HasCredentials() {
		_ = os.Remove(audioPath)
		s.fail("missing API key, configure it in settings")
		return
	}

	raw, err := s.opts.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		L_error("session: transcription failed", "error", err)
		s.fail(apierr.UserMessageFor(err))
		return
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		s.fail("no speech detected")
		return
	}

	final := raw
	polished, err := s.opts.Polisher.Polish(ctx, raw, s.opts.SystemPrompt())
	if err != nil {
		// Polishing is best effort; the raw transcript still gets delivered.
		L_warn("session: polish failed, using raw transcript", "error", err)
	} else if strings.TrimSpace(polished) != "" {
		final = strings.TrimSpace(polished)
	}

	res := s.opts.Injector.Inject(final)
	if res.Err != nil {
		L_warn("session: injection failed", "app", res.Target.Name, "mechanism", res.Mechanism, "error", res.Err)
	} else {
		L_info("session: text injected", "app", res.Target.Name, "mechanism", res.Mechanism, "chars", len(final))
	}

	rec, err := s.opts.Store.Append(history.Record{
		RawTranscript:   raw,
		PolishedText:    final,
		DurationSeconds: seconds,
	})
	if err != nil {
		L_error("session: failed to save record", "error", err)
	} else {
		L_debug("session: record saved", "id", rec.ID)
	}
	if err := s.opts.Store.AddUsage(seconds, history.WordCount(final)); err != nil {
		L_error("session: failed to update stats", "error", err)
	}

	s.opts.Notifier.Succeeded(final)
	s.setStatus(Status{State: StateIdle})
}

func (s *Session) fail(message string) {
	s.setStatus(Status{State: StateError, Message: message})
	s.opts.Notifier.Failed(message)
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	L_debug("session: state change", "state", status.State, "message", status.Message)
	if s.opts.OnState != nil {
		s.opts.OnState(status)
	}
}
