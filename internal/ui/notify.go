package ui

import "sync"

// Level of a user-visible notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, msg string)

func (f NotifierFunc) Notify(level Level, msg string) { f(level, msg) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Level, string) {})

// Console prints notifications with the status helpers.
type Console struct {
	mu sync.Mutex
}

func (c *Console) Notify(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch level {
	case LevelError:
		Fail(msg)
	case LevelWarn:
		Warn(msg)
	default:
		Info(msg)
	}
}
