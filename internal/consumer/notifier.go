package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roadworthy/inspection-platform/internal/event"
)

// Notifier is the fan-in consumer behind cmd/notifier.  It subscribes to
// every topic and appends one structured line per event to a notification
// log; actual delivery (email, SMS) is handed to an external system that
// tails this file.  Appending the same event twice is harmless, so the
// notifier skips the processed-events ledger.
type Notifier struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewNotifier opens (creating if needed) the notification log at path.
func NewNotifier(path string) (*Notifier, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open notification log: %w", err)
	}
	return &Notifier{path: path, file: f}, nil
}

// Keys returns the catch-all binding pattern.
func (n *Notifier) Keys() []string { return []string{"#"} }

// notificationLine is the JSON shape of one appended line.
type notificationLine struct {
	At            time.Time       `json:"at"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	CorrelationID string          `json:"correlation_id"`
	Source        string          `json:"source"`
	Data          json.RawMessage `json:"data"`
}

// Handle implements event.Handler.  Unknown event types are logged too: the
// notifier is the one consumer that wants everything.
func (n *Notifier) Handle(_ context.Context, env event.Envelope) error {
	line, err := json.Marshal(notificationLine{
		At:            time.Now().UTC(),
		EventID:       env.EventID,
		EventType:     env.EventType,
		CorrelationID: env.Metadata.CorrelationID,
		Source:        env.Metadata.Source,
		Data:          env.Data,
	})
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.file.Close()
}
