package alert

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level classifies a notification for the presentation layer.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Alert is one user-facing notification.
type Alert struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives user-facing notifications. Implementations must not
// block the caller.
type Notifier interface {
	Notify(level Level, message string)
}

// Recorder implements Notifier with a bounded most-recent-first buffer,
// mirroring each notification to the structured log. The buffer is what the
// presentation layer polls for toast display.
type Recorder struct {
	mu     sync.Mutex
	max    int
	alerts []Alert
	logger *zap.Logger
}

// NewRecorder creates a Recorder keeping at most max alerts (default 20).
func NewRecorder(logger *zap.Logger, max int) *Recorder {
	if max <= 0 {
		max = 20
	}
	return &Recorder{max: max, logger: logger}
}

// Notify records the alert and logs it at a level matching its severity.
func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	r.alerts = append([]Alert{{Level: level, Message: message, Time: time.Now()}}, r.alerts...)
	if len(r.alerts) > r.max {
		r.alerts = r.alerts[:r.max]
	}
	r.mu.Unlock()

	switch level {
	case LevelError:
		r.logger.Warn("alert", zap.String("level", string(level)), zap.String("message", message))
	default:
		r.logger.Info("alert", zap.String("level", string(level)), zap.String("message", message))
	}
}

// Recent returns a copy of the retained alerts, most recent first.
func (r *Recorder) Recent() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Nop is a Notifier that discards everything. Used in tests.
type Nop struct{}

func (Nop) Notify(Level, string) {}
