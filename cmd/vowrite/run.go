package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cronlib "github.com/robfig/cron/v3"
	godaemon "github.com/sevlyar/go-daemon"

	"github.com/vowrite/vowrite/internal/audio"
	"github.com/vowrite/vowrite/internal/config"
	"github.com/vowrite/vowrite/internal/history"
	"github.com/vowrite/vowrite/internal/inject"
	. "github.com/vowrite/vowrite/internal/logging"
	"github.com/vowrite/vowrite/internal/notify"
	"github.com/vowrite/vowrite/internal/paths"
	"github.com/vowrite/vowrite/internal/polish"
	"github.com/vowrite/vowrite/internal/prompt"
	"github.com/vowrite/vowrite/internal/session"
	"github.com/vowrite/vowrite/internal/stt"
)

const selfBundleID = "com.vowrite.app"

// RunCmd starts the dictation daemon. SIGUSR1 toggles a dictation, SIGUSR2
// cancels the current recording, SIGINT/SIGTERM exit. A global-hotkey helper
// (or skhd, Hammerspoon, etc.) is expected to deliver the signals.
type RunCmd struct {
	Daemon bool `help:"Detach and run in the background."`
	Notify bool `default:"true" negatable:"" help:"Show desktop notifications."`
}

func (c *RunCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	Init(&Config{Level: cfg.LogLevel(), ShowCaller: cfg.Logging.ShowCaller})

	if c.Daemon {
		child, dctx, err := daemonize()
		if err != nil {
			return err
		}
		if child != nil {
			fmt.Printf("vowrite daemon started, pid %d\n", child.Pid)
			return nil
		}
		defer dctx.Release()
	}

	L_info("vowrite %s starting", version)
	return c.serve(g, cfg)
}

func daemonize() (*os.Process, *godaemon.Context, error) {
	base, err := paths.BaseDir()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDir(base); err != nil {
		return nil, nil, err
	}
	dctx := &godaemon.Context{
		PidFileName: base + "/vowrite.pid",
		PidFilePerm: 0644,
		LogFileName: base + "/vowrite.log",
		LogFilePerm: 0640,
		Umask:       027,
	}
	child, err := dctx.Reborn()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to daemonize: %w", err)
	}
	return child, dctx, nil
}

func (c *RunCmd) serve(g *Globals, cfg *config.Config) error {
	store, err := history.Open("")
	if err != nil {
		return err
	}
	defer store.Close()

	keyer, err := inject.NewSystemKeyer()
	if err != nil {
		return fmt.Errorf("initialize key synthesis: %w", err)
	}

	app := newAppState(cfg)
	injector := inject.New(inject.Options{
		Workspace:    inject.SystemWorkspace{},
		Clipboard:    inject.SystemClipboard{},
		Keyer:        keyer,
		SelfBundleID: selfBundleID,
		ForceTyping:  cfg.Injection.ForceTyping,
		SettleDelay:  time.Duration(cfg.Injection.SettleDelayMS) * time.Millisecond,
		RestoreDelay: time.Duration(cfg.Injection.RestoreDelayMS) * time.Millisecond,
		CharDelay:    time.Duration(cfg.Injection.CharDelayMicros) * time.Microsecond,
	})

	sess := session.New(session.Options{
		Recorder:       audio.NewRecorder(),
		Transcriber:    app,
		Polisher:       app,
		Injector:       injector,
		Store:          store,
		Notifier:       notify.NewDesktop(c.Notify),
		Permissions:    micPermissions{},
		SystemPrompt:   app.SystemPrompt,
		HasCredentials: app.HasCredentials,
		OnState: func(st session.Status) {
			if st.State == session.StateError {
				L_warn("session error", "message", st.Message)
			}
		},
	})

	// Leftovers from crashed runs, then an hourly sweep.
	audio.RemoveStaleRecordings(time.Hour)
	cr := cronlib.New()
	if _, err := cr.AddFunc("@hourly", func() { audio.RemoveStaleRecordings(time.Hour) }); err != nil {
		return err
	}
	cr.Start()
	defer cr.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := config.NewWatcher(configWatchPath(g), func(next *config.Config) {
		app.Swap(next)
		SetLevel(next.LogLevel())
	})
	if err != nil {
		L_warn("config watcher unavailable", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			L_warn("config watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGINT, syscall.SIGTERM)
	L_info("vowrite ready", "provider", cfg.API.Provider, "toggle", "SIGUSR1", "cancel", "SIGUSR2")

	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			sess.Toggle()
		case syscall.SIGUSR2:
			sess.Cancel()
		case syscall.SIGINT, syscall.SIGTERM:
			L_info("shutting down", "signal", sig)
			if sess.Status().State == session.StateRecording {
				sess.Cancel()
			}
			sess.Wait()
			injector.Flush()
			return nil
		}
	}
	return nil
}

// configWatchPath resolves the file the watcher should follow. When no config
// exists yet we watch the default location so creating one takes effect live.
func configWatchPath(g *Globals) string {
	if g.Config != "" {
		return g.Config
	}
	if p, err := paths.ConfigPath(); err == nil && p != "" {
		return p
	}
	p, err := paths.DefaultConfigPath()
	if err != nil {
		return "vowrite.toml"
	}
	return p
}

// micPermissions grants unconditionally: macOS raises its own microphone
// consent prompt the first time the input stream opens, and PortAudio surfaces
// a denial as a stream open failure.
type micPermissions struct{}

func (micPermissions) RequestMicrophone(cb func(bool)) { cb(true) }

// appState holds the pieces rebuilt on config reload, swapped atomically so a
// dictation mid-flight keeps the clients it started with.
type appState struct {
	mu     sync.RWMutex
	cfg    *config.Config
	stt    *stt.Client
	polish *polish.Client
	scenes *config.SceneSet
}

func newAppState(cfg *config.Config) *appState {
	a := &appState{}
	a.Swap(cfg)
	return a
}

func (a *appState) Swap(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.stt = stt.NewClient(cfg.API)
	a.polish = polish.NewClient(cfg.API)
	a.scenes = config.LoadScenes()
}

func (a *appState) Transcribe(ctx context.Context, audioPath string) (string, error) {
	a.mu.RLock()
	client := a.stt
	a.mu.RUnlock()
	return client.Transcribe(ctx, audioPath)
}

func (a *appState) Polish(ctx context.Context, text, systemPrompt string) (string, error) {
	a.mu.RLock()
	client := a.polish
	a.mu.RUnlock()
	return client.Polish(ctx, text, systemPrompt)
}

func (a *appState) SystemPrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return prompt.Effective(a.cfg.Prompt.SystemPrompt, a.cfg.Prompt.UserPrompt, a.scenes.PromptFor(a.cfg.Prompt.Scene))
}

func (a *appState) HasCredentials() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.HasCredentials()
}
