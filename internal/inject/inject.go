// Package inject restores focus to the previously active application and
// delivers text into its focused input.
package inject

import (
	"fmt"
	"sync"
	"time"

	. "github.com/vowrite/vowrite/internal/logging"
)

// FocusTarget identifies the application that held keyboard focus when
// recording started.
type FocusTarget struct {
	BundleID string
	Name     string
}

// IsZero reports whether no target was captured.
func (t FocusTarget) IsZero() bool {
	return t.BundleID == "" && t.Name == ""
}

// Workspace abstracts frontmost-application queries and activation.
type Workspace interface {
	// Frontmost returns the currently focused application.
	Frontmost() (FocusTarget, error)
	// Activate brings the target to the front (direct mechanism).
	Activate(target FocusTarget) error
	// ActivateScript is the OS-scripting fallback, attempted unconditionally
	// as a safety net after Activate.
	ActivateScript(target FocusTarget) error
}

// Clipboard abstracts the shared system clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// Keyer posts synthetic keyboard events.
type Keyer interface {
	// Paste synthesizes the platform's standard paste shortcut.
	Paste() error
	// TypeChar synthesizes direct input of a single character.
	TypeChar(r rune) error
}

// Mechanism names the delivery path used by an injection attempt.
type Mechanism string

const (
	MechanismPaste Mechanism = "paste"
	MechanismType  Mechanism = "type"
	MechanismNone  Mechanism = "none"
)

// Result reports how an injection attempt went. Callers log it; delivery is
// best-effort and never escalated into a session failure.
type Result struct {
	Target    FocusTarget
	Mechanism Mechanism
	Err       error
}

// Options configures an Injector.
type Options struct {
	Workspace Workspace
	Clipboard Clipboard
	Keyer     Keyer

	// SelfBundleID is excluded when capturing the focus target, so a click
	// on our own UI never becomes the paste destination.
	SelfBundleID string

	// HasInputPermission reports whether elevated input-simulation permission
	// is granted. When true the clipboard+paste path is used; otherwise
	// per-character typing. nil assumes granted.
	HasInputPermission func() bool

	// ForceTyping skips the clipboard path even when permitted.
	ForceTyping bool

	SettleDelay  time.Duration // wait after activation before delivering
	RestoreDelay time.Duration // wait before restoring the clipboard
	CharDelay    time.Duration // pause between typed characters

	// Sleep is replaceable in tests. nil uses time.Sleep.
	Sleep func(time.Duration)
}

// Injector remembers the focus target captured at recording start and later
// re-activates it and delivers text.
type Injector struct {
	opts Options

	mu     sync.Mutex
	target FocusTarget

	restoreWG sync.WaitGroup
}

// New creates an Injector. Zero delays get the stock values.
func New(opts Options) *Injector {
	if opts.HasInputPermission == nil {
		opts.HasInputPermission = func() bool { return true }
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 300 * time.Millisecond
	}
	if opts.RestoreDelay == 0 {
		opts.RestoreDelay = 2 * time.Second
	}
	if opts.CharDelay == 0 {
		opts.CharDelay = 3 * time.Millisecond
	}
	return &Injector{opts: opts}
}

// SaveFocusTarget records the frontmost application, if it is not this app.
// Must be called the moment recording starts, before any overlay UI can
// steal focus.
func (i *Injector) SaveFocusTarget() {
	target, err := i.opts.Workspace.Frontmost()
	if err != nil {
		L_warn("inject: failed to query frontmost application", "error", err)
		return
	}
	if target.BundleID != "" && target.BundleID == i.opts.SelfBundleID {
		L_debug("inject: frontmost is ourselves, keeping previous target")
		return
	}

	i.mu.Lock()
	i.target = target
	i.mu.Unlock()
	L_debug("inject: saved focus target", "app", target.Name, "bundle", target.BundleID)
}

// Target returns the currently saved focus target.
func (i *Injector) Target() FocusTarget {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.target
}

// Inject re-activates the saved application and delivers text into its
// focused input. Clipboard restoration happens in the background; Flush
// waits for it.
func (i *Injector) Inject(text string) Result {
	target := i.Target()

	i.activate(target)
	i.opts.Sleep(i.opts.SettleDelay)

	if !i.opts.ForceTyping && i.opts.HasInputPermission() {
		err := i.pasteViaClipboard(text)
		return Result{Target: target, Mechanism: MechanismPaste, Err: err}
	}
	err := i.typeCharacters(text)
	return Result{Target: target, Mechanism: MechanismType, Err: err}
}

// Flush waits for any pending clipboard restoration.
func (i *Injector) Flush() {
	i.restoreWG.Wait()
}

func (i *Injector) activate(target FocusTarget) {
	if target.IsZero() {
		L_debug("inject: no saved target, delivering to current focus")
		return
	}
	if err := i.opts.Workspace.Activate(target); err != nil {
		L_warn("inject: direct activation failed", "app", target.Name, "error", err)
	}
	// Scripting fallback runs unconditionally as a safety net.
	if err := i.opts.Workspace.ActivateScript(target); err != nil {
		L_debug("inject: script activation failed", "app", target.Name, "error", err)
	}
}

// pasteViaClipboard places the text on the clipboard, posts the paste
// shortcut, and restores the prior clipboard after RestoreDelay. If the user
// copies something else inside that window it is silently overwritten - an
// accepted limitation of the fixed-delay handshake.
func (i *Injector) pasteViaClipboard(text string) error {
	previous, err := i.opts.Clipboard.Read()
	if err != nil {
		L_debug("inject: could not read prior clipboard", "error", err)
		previous = ""
	}

	if err := i.opts.Clipboard.Write(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	if err := i.opts.Keyer.Paste(); err != nil {
		return fmt.Errorf("post paste shortcut: %w", err)
	}
	L_debug("inject: paste posted", "chars", len(text))

	i.restoreWG.Add(1)
	go func() {
		defer i.restoreWG.Done()
		i.opts.Sleep(i.opts.RestoreDelay)
		if err := i.opts.Clipboard.Write(previous); err != nil {
			L_debug("inject: clipboard restore failed", "error", err)
		}
	}()
	return nil
}

// typeCharacters posts one input event per character with a small delay to
// avoid overwhelming the input queue. Needs no elevated permission.
func (i *Injector) typeCharacters(text string) error {
	var failed int
	for _, r := range text {
		if err := i.opts.Keyer.TypeChar(r); err != nil {
			failed++
			continue
		}
		i.opts.Sleep(i.opts.CharDelay)
	}
	L_debug("inject: typing complete", "chars", len([]rune(text)), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("failed to type %d of %d characters", failed, len([]rune(text)))
	}
	return nil
}
