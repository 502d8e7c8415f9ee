package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vowrite/vowrite/internal/apierr"
	"github.com/vowrite/vowrite/internal/history"
	"github.com/vowrite/vowrite/internal/inject"
)

// callLog records cross-collaborator call ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeRecorder struct {
	log      *callLog
	startErr error
	stopErr  error
	path     string
	seconds  float64

	mu        sync.Mutex
	started   int
	stopped   int
	cancelled int
}

func (f *fakeRecorder) Start() error {
	f.log.add("recorder.Start")
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
	return f.startErr
}

func (f *fakeRecorder) Stop() (string, float64, error) {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
	return f.path, f.seconds, f.stopErr
}

func (f *fakeRecorder) Cancel() error {
	f.mu.Lock()
	f.cancelled++
	f.mu.Unlock()
	return nil
}

func (f *fakeRecorder) Level() float64 { return 0.8 }

type fakeTranscriber struct {
	text  string
	err   error
	block chan struct{} // when non-nil, Transcribe waits on it

	mu      sync.Mutex
	calls   int
	gotPath string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.gotPath = path
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	_ = os.Remove(path)
	return f.text, f.err
}

type fakePolisher struct {
	text string
	err  error

	mu        sync.Mutex
	gotInput  string
	gotPrompt string
}

func (f *fakePolisher) Polish(_ context.Context, text, systemPrompt string) (string, error) {
	f.mu.Lock()
	f.gotInput = text
	f.gotPrompt = systemPrompt
	f.mu.Unlock()
	return f.text, f.err
}

type fakeInjector struct {
	log *callLog
	res inject.Result

	mu       sync.Mutex
	saves    int
	injected []string
}

func (f *fakeInjector) SaveFocusTarget() {
	f.log.add("injector.SaveFocusTarget")
	f.mu.Lock()
	f.saves++
	f.mu.Unlock()
}

func (f *fakeInjector) Inject(text string) inject.Result {
	f.mu.Lock()
	f.injected = append(f.injected, text)
	f.mu.Unlock()
	return f.res
}

type usage struct {
	seconds float64
	words   int
}

type fakeStore struct {
	mu      sync.Mutex
	records []history.Record
	usages  []usage
}

func (f *fakeStore) Append(rec history.Record) (history.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = "rec-1"
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) AddUsage(seconds float64, words int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usages = append(f.usages, usage{seconds, words})
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	started   int
	succeeded []string
	failed    []string
}

func (f *fakeNotifier) RecordingStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeNotifier) Succeeded(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.succeeded = append(f.succeeded, text)
}

func (f *fakeNotifier) Failed(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, message)
}

type fakePermissions struct{ granted bool }

func (f *fakePermissions) RequestMicrophone(cb func(bool)) { cb(f.granted) }

type harness struct {
	session     *Session
	recorder    *fakeRecorder
	transcriber *fakeTranscriber
	polisher    *fakePolisher
	injector    *fakeInjector
	store       *fakeStore
	notifier    *fakeNotifier
	log         *callLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := &callLog{}
	audioPath := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(audioPath, []byte("pcm"), 0644); err != nil {
		t.Fatal(err)
	}

	h := &harness{
		recorder:    &fakeRecorder{log: log, path: audioPath, seconds: 2.5},
		transcriber: &fakeTranscriber{text: "raw words here"},
		polisher:    &fakePolisher{text: "Polished words here."},
		injector:    &fakeInjector{log: log},
		store:       &fakeStore{},
		notifier:    &fakeNotifier{},
		log:         log,
	}
	h.session = New(Options{
		Recorder:       h.recorder,
		Transcriber:    h.transcriber,
		Polisher:       h.polisher,
		Injector:       h.injector,
		Store:          h.store,
		Notifier:       h.notifier,
		Permissions:    &fakePermissions{granted: true},
		SystemPrompt:   func() string { return "system prompt" },
		HasCredentials: func() bool { return true },
	})
	return h
}

func TestFullDictationCycle(t *testing.T) {
	h := newHarness(t)

	h.session.Toggle()
	if got := h.session.Status().State; got != StateRecording {
		t.Fatalf("after first toggle: %s", got)
	}
	if h.notifier.started != 1 {
		t.Errorf("start notification missing")
	}

	h.session.Toggle()
	h.session.Wait()

	if got := h.session.Status().State; got != StateIdle {
		t.Fatalf("after pipeline: %s", got)
	}
	if len(h.injector.injected) != 1 || h.injector.injected[0] != "Polished words here." {
		t.Errorf("injected = %v", h.injector.injected)
	}
	if h.polisher.gotInput != "raw words here" || h.polisher.gotPrompt != "system prompt" {
		t.Errorf("polish call = (%q, %q)", h.polisher.gotInput, h.polisher.gotPrompt)
	}
	if len(h.store.records) != 1 {
		t.Fatalf("records = %d", len(h.store.records))
	}
	rec := h.store.records[0]
	if rec.RawTranscript != "raw words here" || rec.PolishedText != "Polished words here." {
		t.Errorf("record = %+v", rec)
	}
	if rec.DurationSeconds != 2.5 {
		t.Errorf("duration = %v", rec.DurationSeconds)
	}
	if rec.DetectedLanguage != nil {
		t.Errorf("detected language should be unset")
	}
	if len(h.store.usages) != 1 {
		t.Fatalf("usages = %v", h.store.usages)
	}
	if want := history.WordCount("Polished words here."); h.store.usages[0].words != want {
		t.Errorf("words = %d, want %d", h.store.usages[0].words, want)
	}
	if len(h.notifier.succeeded) != 1 {
		t.Errorf("success notification missing")
	}
}

func TestFocusTargetSavedBeforeCaptureStarts(t *testing.T) {
	h := newHarness(t)

	h.session.Start()

	calls := h.log.list()
	if len(calls) < 2 || calls[0] != "injector.SaveFocusTarget" || calls[1] != "recorder.Start" {
		t.Errorf("call order = %v", calls)
	}
}

func TestToggleIgnoredWhileProcessing(t *testing.T) {
	h := newHarness(t)
	h.transcriber.block = make(chan struct{})

	h.session.Toggle()
	h.session.Toggle()
	if got := h.session.Status().State; got != StateProcessing {
		t.Fatalf("state = %s", got)
	}

	// A toggle mid-pipeline must neither start a new recording nor stop anything.
	h.session.Toggle()
	if h.recorder.started != 1 {
		t.Errorf("started = %d", h.recorder.started)
	}
	if got := h.session.Status().State; got != StateProcessing {
		t.Errorf("state after mid-pipeline toggle = %s", got)
	}

	close(h.transcriber.block)
	h.session.Wait()
	if got := h.session.Status().State; got != StateIdle {
		t.Errorf("final state = %s", got)
	}
}

func TestPolishFailureFallsBackToRawTranscript(t *testing.T) {
	h := newHarness(t)
	h.polisher.err = errors.New("polish exploded")

	h.session.Start()
	h.session.Stop()
	h.session.Wait()

	if got := h.session.Status().State; got != StateIdle {
		t.Fatalf("state = %s, polish failure must not be fatal", got)
	}
	if len(h.injector.injected) != 1 || h.injector.injected[0] != "raw words here" {
		t.Errorf("injected = %v", h.injector.injected)
	}
	if len(h.store.records) != 1 || h.store.records[0].PolishedText != "raw words here" {
		t.Errorf("records = %+v", h.store.records)
	}
	if len(h.notifier.failed) != 0 {
		t.Errorf("polish fallback must be silent, got failures %v", h.notifier.failed)
	}
}

func TestTranscriptionFailureClassifiedNoRecord(t *testing.T) {
	h := newHarness(t)
	h.transcriber.err = &apierr.APIError{Kind: apierr.KindAPI, Op: "transcribe", StatusCode: 401, Body: "unauthorized"}
	h.transcriber.text = ""

	h.session.Start()
	h.session.Stop()
	h.session.Wait()

	status := h.session.Status()
	if status.State != StateError {
		t.Fatalf("state = %s", status.State)
	}
	if status.Message != "API key invalid, check your settings" {
		t.Errorf("message = %q", status.Message)
	}
	if len(h.store.records) != 0 {
		t.Errorf("failed dictations must not be recorded: %+v", h.store.records)
	}
	if len(h.injector.injected) != 0 {
		t.Errorf("nothing should be injected on failure")
	}

	// The error state is recoverable: the next toggle starts a new recording.
	h.session.Toggle()
	if got := h.session.Status().State; got != StateRecording {
		t.Errorf("toggle from error state = %s", got)
	}
}

func TestCancelDiscardsRecording(t *testing.T) {
	h := newHarness(t)

	h.session.Start()
	h.session.Cancel()

	if got := h.session.Status().State; got != StateIdle {
		t.Errorf("state = %s", got)
	}
	if h.recorder.cancelled != 1 {
		t.Errorf("cancelled = %d", h.recorder.cancelled)
	}
	if len(h.store.records) != 0 {
		t.Errorf("cancel must not produce a record")
	}
	if len(h.notifier.failed) != 1 {
		t.Errorf("cancel feedback missing")
	}

	// Cancel outside recording is a no-op.
	h.session.Cancel()
	if h.recorder.cancelled != 1 {
		t.Errorf("cancel while idle must not reach the recorder")
	}
}

func TestEmptyTranscriptIsAnError(t *testing.T) {
	h := newHarness(t)
	h.transcriber.text = "   \n"

	h.session.Start()
	h.session.Stop()
	h.session.Wait()

	status := h.session.Status()
	if status.State != StateError || status.Message != "no speech detected" {
		t.Errorf("status = %+v", status)
	}
	if len(h.store.records) != 0 || len(h.injector.injected) != 0 {
		t.Errorf("empty transcript must not be recorded or injected")
	}
}

func TestMissingCredentialsRemovesAudio(t *testing.T) {
	h := newHarness(t)
	h.session.opts.HasCredentials = func() bool { return false }

	h.session.Start()
	h.session.Stop()
	h.session.Wait()

	status := h.session.Status()
	if status.State != StateError || status.Message != "missing API key, configure it in settings" {
		t.Errorf("status = %+v", status)
	}
	if h.transcriber.calls != 0 {
		t.Errorf("no network call allowed without credentials")
	}
	if _, err := os.Stat(h.recorder.path); !os.IsNotExist(err) {
		t.Errorf("audio file should be removed")
	}
}

func TestPermissionDeniedBlocksCapture(t *testing.T) {
	h := newHarness(t)
	h.session.opts.Permissions = &fakePermissions{granted: false}

	h.session.Start()

	status := h.session.Status()
	if status.State != StateError {
		t.Fatalf("state = %s", status.State)
	}
	if h.recorder.started != 0 {
		t.Errorf("capture must not start without permission")
	}
}

func TestCaptureStartFailure(t *testing.T) {
	h := newHarness(t)
	h.recorder.startErr = errors.New("device busy")

	h.session.Start()

	status := h.session.Status()
	if status.State != StateError || status.Message != "recording failed, check microphone permissions" {
		t.Errorf("status = %+v", status)
	}
}

func TestStopWithoutAudio(t *testing.T) {
	h := newHarness(t)
	h.recorder.stopErr = errors.New("no frames")

	h.session.Start()
	h.session.Stop()

	status := h.session.Status()
	if status.State != StateError || status.Message != "no audio captured" {
		t.Errorf("status = %+v", status)
	}
}

func TestOnStateObservesTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []State

	h := newHarness(t)
	h.session.opts.OnState = func(st Status) {
		mu.Lock()
		states = append(states, st.State)
		mu.Unlock()
	}

	h.session.Start()
	h.session.Stop()
	h.session.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateRecording, StateProcessing, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("states = %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], want[i])
		}
	}
}
