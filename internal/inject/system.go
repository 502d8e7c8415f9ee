package inject

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"unicode"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// frontmostScript asks System Events for the focused process. Two lines out:
// bundle identifier, then display name.
const frontmostScript = `tell application "System Events" to tell (first process whose frontmost is true) to return bundle identifier & "
" & name`

// SystemWorkspace talks to the OS through osascript and open(1).
type SystemWorkspace struct{}

// Frontmost returns the currently focused application.
func (SystemWorkspace) Frontmost() (FocusTarget, error) {
	out, err := exec.Command("osascript", "-e", frontmostScript).Output()
	if err != nil {
		return FocusTarget{}, fmt.Errorf("query frontmost application: %w", err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)
	target := FocusTarget{BundleID: strings.TrimSpace(lines[0])}
	if len(lines) > 1 {
		target.Name = strings.TrimSpace(lines[1])
	}
	return target, nil
}

// Activate brings the target application to the front.
func (SystemWorkspace) Activate(target FocusTarget) error {
	if target.BundleID == "" {
		return fmt.Errorf("no bundle identifier for %q", target.Name)
	}
	return exec.Command("open", "-b", target.BundleID).Run()
}

// ActivateScript activates the target through AppleScript.
func (SystemWorkspace) ActivateScript(target FocusTarget) error {
	if target.BundleID == "" {
		return fmt.Errorf("no bundle identifier for %q", target.Name)
	}
	script := fmt.Sprintf("tell application id %q to activate", target.BundleID)
	return exec.Command("osascript", "-e", script).Run()
}

// SystemClipboard is the shared pasteboard.
type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error) {
	return clipboard.ReadAll()
}

func (SystemClipboard) Write(text string) error {
	return clipboard.WriteAll(text)
}

// SystemKeyer posts key events through the OS input queue.
type SystemKeyer struct {
	kb keybd_event.KeyBonding
}

// NewSystemKeyer prepares the key-event binding.
func NewSystemKeyer() (*SystemKeyer, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("initialize key events: %w", err)
	}
	return &SystemKeyer{kb: kb}, nil
}

// Paste posts the platform's standard paste shortcut (Cmd+V on macOS,
// Ctrl+V elsewhere).
func (k *SystemKeyer) Paste() error {
	k.kb.Clear()
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	k.kb.SetKeys(keybd_event.VK_V)
	return k.kb.Launching()
}

// letterKeys maps lowercase letters to virtual key codes.
var letterKeys = map[rune]int{
	'a': keybd_event.VK_A, 'b': keybd_event.VK_B, 'c': keybd_event.VK_C,
	'd': keybd_event.VK_D, 'e': keybd_event.VK_E, 'f': keybd_event.VK_F,
	'g': keybd_event.VK_G, 'h': keybd_event.VK_H, 'i': keybd_event.VK_I,
	'j': keybd_event.VK_J, 'k': keybd_event.VK_K, 'l': keybd_event.VK_L,
	'm': keybd_event.VK_M, 'n': keybd_event.VK_N, 'o': keybd_event.VK_O,
	'p': keybd_event.VK_P, 'q': keybd_event.VK_Q, 'r': keybd_event.VK_R,
	's': keybd_event.VK_S, 't': keybd_event.VK_T, 'u': keybd_event.VK_U,
	'v': keybd_event.VK_V, 'w': keybd_event.VK_W, 'x': keybd_event.VK_X,
	'y': keybd_event.VK_Y, 'z': keybd_event.VK_Z,
}

var digitKeys = map[rune]int{
	'0': keybd_event.VK_0, '1': keybd_event.VK_1, '2': keybd_event.VK_2,
	'3': keybd_event.VK_3, '4': keybd_event.VK_4, '5': keybd_event.VK_5,
	'6': keybd_event.VK_6, '7': keybd_event.VK_7, '8': keybd_event.VK_8,
	'9': keybd_event.VK_9,
}

// TypeChar synthesizes a single character. Key-code synthesis only reaches
// the ASCII subset; characters outside it report an error and the caller
// keeps going.
func (k *SystemKeyer) TypeChar(r rune) error {
	k.kb.Clear()

	switch {
	case r == ' ':
		k.kb.SetKeys(keybd_event.VK_SPACE)
	case r == '\n':
		k.kb.SetKeys(keybd_event.VK_ENTER)
	case unicode.IsUpper(r):
		code, ok := letterKeys[unicode.ToLower(r)]
		if !ok {
			return fmt.Errorf("unmappable character %q", r)
		}
		k.kb.HasSHIFT(true)
		k.kb.SetKeys(code)
	default:
		if code, ok := letterKeys[r]; ok {
			k.kb.SetKeys(code)
		} else if code, ok := digitKeys[r]; ok {
			k.kb.SetKeys(code)
		} else {
			return fmt.Errorf("unmappable character %q", r)
		}
	}

	return k.kb.Launching()
}
