// Package notify delivers session feedback as desktop notifications.
package notify

import (
	"github.com/gen2brain/beeep"

	. "github.com/vowrite/vowrite/internal/logging"
)

const appTitle = "Vowrite"

// Desktop sends start/success/failure feedback through the system
// notification center. Delivery failures are logged and otherwise ignored.
type Desktop struct {
	// Enabled gates all notifications. Zero value is silent.
	Enabled bool
}

func NewDesktop(enabled bool) *Desktop {
	return &Desktop{Enabled: enabled}
}

func (d *Desktop) RecordingStarted() {
	d.send("Recording started")
}

func (d *Desktop) Succeeded(text string) {
	const max = 80
	if len(text) > max {
		text = text[:max] + "..."
	}
	d.send(text)
}

func (d *Desktop) Failed(message string) {
	d.send(message)
}

func (d *Desktop) send(body string) {
	if !d.Enabled {
		return
	}
	if err := beeep.Notify(appTitle, body, ""); err != nil {
		L_debug("notify: delivery failed", "error", err)
	}
}
