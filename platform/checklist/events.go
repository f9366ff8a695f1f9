package checklist

import (
	"encoding/json"
	"time"
)

// Event subjects, relative to Config.SubjectPrefix.
const (
	SubjectToggled  = "toggled"
	SubjectReplaced = "replaced"
)

// EventPublisher publishes change events. *nats.Conn satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// ToggledEvent is published after a single item changed state.
type ToggledEvent struct {
	Name    string    `json:"name"`
	Checked bool      `json:"checked"`
	Index   int       `json:"index"`
	At      time.Time `json:"at"`
}

// ReplacedEvent is published after the whole checklist was replaced.
type ReplacedEvent struct {
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// publish sends an event if a publisher is configured. Failures are logged
// and never fail the operation that produced the event.
func (p *Platform) publish(subject string, event any) {
	p.eventsMu.Lock()
	pub := p.publisher
	p.eventsMu.Unlock()
	if pub == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal event", "subject", subject, "error", err)
		return
	}

	full := p.config.SubjectPrefix + "." + subject
	if err := pub.Publish(full, data); err != nil {
		p.logger.Warn("Failed to publish event", "subject", full, "error", err)
		return
	}
	p.logger.Debug("Published event", "subject", full)
}
