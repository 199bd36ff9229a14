package notifier

// Notifier pushes cycle outcomes to an external channel. Kept minimal so
// callers never import a concrete implementation.
type Notifier interface {
	SendText(text string) error
	// SendPhoto pushes a PNG with an optional caption.
	SendPhoto(png []byte, caption string) error
}

// Noop discards every message. Used when no channel is configured.
type Noop struct{}

func (Noop) SendText(string) error          { return nil }
func (Noop) SendPhoto([]byte, string) error { return nil }
