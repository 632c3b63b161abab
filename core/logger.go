package core

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity is attached to log entries to tell who triggered them.
type Identity struct {
	ID       string
	Username string
	Email    string
}

// Metrics records domain events.
type Metrics interface {
	// IncRow counts one processed ingestion row of `kind` ending with `status`.
	IncRow(kind, status string)
	// IncTransition counts one complaint lifecycle transition.
	IncTransition(event string)
}

type nopMetrics struct{}

func (nopMetrics) IncRow(string, string) {}
func (nopMetrics) IncTransition(string)  {}

// NopMetrics discards everything.
var NopMetrics Metrics = nopMetrics{}
