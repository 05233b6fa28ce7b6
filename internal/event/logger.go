package event

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventLogger appends every lifecycle event to a daily NDJSON file, giving
// operators a replayable audit trail.
type EventLogger struct {
	logDir string
	mu     sync.Mutex
}

func NewEventLogger(logDir string) (*EventLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	return &EventLogger{logDir: logDir}, nil
}

// LogEvent appends one NDJSON line for the event.
func (el *EventLogger) LogEvent(eventMsg *EventMessage) error {
	el.mu.Lock()
	defer el.mu.Unlock()

	entry := struct {
		*EventMessage
		LoggedAt string `json:"logged_at"`
	}{
		EventMessage: eventMsg,
		LoggedAt:     time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	file, err := os.OpenFile(el.filePath(eventMsg.Timestamp), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Attach subscribes the logger to every lifecycle event type on the bus.
func (el *EventLogger) Attach(eb *EventBus) {
	for _, t := range AllTypes() {
		eb.SubscribeAsync(t, "event_logger_"+string(t), el.LogEvent)
	}
}

func (el *EventLogger) filePath(ts time.Time) string {
	return filepath.Join(el.logDir, ts.Format("2006-01-02")+".ndjson")
}
