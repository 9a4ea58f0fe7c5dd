package session

// Notifier is the user-facing notification sink (a toast bar, a status
// line). The controller emits non-blocking warnings through it, e.g.
// when an answer is saved locally but not yet acknowledged.
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Warn(string)  {}
func (nopNotifier) Error(string) {}

// NopNotifier discards all notifications.
var NopNotifier Notifier = nopNotifier{}
