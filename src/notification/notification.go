// Package notification reports results as desktop notifications. Used when the app runs
// from the tray and the window is hidden.
package notification

import (
	"fyne.io/fyne/v2"
	"github.com/rs/zerolog/log"

	"screen-capture-extractor/src/session"
)

const maxBodyRunes = 200

// Notifier is a session.ResultTarget.
type Notifier struct {
	app fyne.App
}

func New(a fyne.App) *Notifier {
	return &Notifier{app: a}
}

func (n *Notifier) OnSuccess(saved session.Saved) error {
	n.send(successNotification(saved))
	return nil
}

func (n *Notifier) OnFailure(err error) error {
	n.send(failureNotification(err))
	return nil
}

func (n *Notifier) send(note *fyne.Notification) {
	log.Debug().Str("title", note.Title).Msg("sending notification")
	n.app.SendNotification(note)
}

func successNotification(saved session.Saved) *fyne.Notification {
	return fyne.NewNotification("Capture saved", truncate(session.Describe(saved)))
}

func failureNotification(err error) *fyne.Notification {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fyne.NewNotification("Capture failed", truncate(msg))
}

// truncate keeps notification bodies short; some platforms drop long ones.
func truncate(text string) string {
	r := []rune(text)
	if len(r) <= maxBodyRunes {
		return text
	}
	return string(r[:maxBodyRunes]) + "..."
}
