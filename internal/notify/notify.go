// Package notify shows desktop notifications for finished subtitle jobs.
package notify

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/gen2brain/beeep"
)

const appName = "GigaSRT"

// maxMessage keeps notification bodies short enough for every desktop.
const maxMessage = 160

// Notifier sends desktop notifications.
type Notifier struct {
	enabled atomic.Bool
	send    func(title, message, icon string) error
}

// New creates a Notifier backed by the system notification service.
func New(enabled bool) *Notifier {
	n := &Notifier{
		send: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
	}
	n.enabled.Store(enabled)
	return n
}

// NewForTests creates a Notifier with an injected sender.
func NewForTests(send func(title, message, icon string) error) *Notifier {
	n := &Notifier{send: send}
	n.enabled.Store(true)
	return n
}

// SetEnabled toggles notifications; safe to call while jobs report.
func (n *Notifier) SetEnabled(enabled bool) {
	if n == nil {
		return
	}
	n.enabled.Store(enabled)
}

// Enabled reports whether notifications are shown.
func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled.Load()
}

// Done reports a written subtitle file.
func (n *Notifier) Done(inputPath string, segments int) error {
	return n.notify("Subtitles ready", fmt.Sprintf("%s: %d segments", filepath.Base(inputPath), segments))
}

// Failed reports a failed job.
func (n *Notifier) Failed(inputPath string, err error) error {
	return n.notify("Transcription failed", fmt.Sprintf("%s: %v", filepath.Base(inputPath), err))
}

// Dropped reports jobs removed from the queue after a failure.
func (n *Notifier) Dropped(count int) error {
	return n.notify("Queue stopped", fmt.Sprintf("%d queued file(s) dropped after a failure", count))
}

func (n *Notifier) notify(title, message string) error {
	if !n.Enabled() || n.send == nil {
		return nil
	}
	if r := []rune(message); len(r) > maxMessage {
		message = string(r[:maxMessage]) + "..."
	}
	return n.send(appName+": "+title, message, "")
}
