package tombstone

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMarkerField is the column written when a model is soft-deleted.
const DefaultMarkerField = "deleted_at"

// softDeleteEvents are the events a Policy can switch, in emission order.
var (
	preDeleteEvents  = []EventName{EventDestroying, EventSaving, EventUpdating}
	postDeleteEvents = []EventName{EventDestroyed, EventSaved, EventUpdated}
)

// Policy configures soft deletion for a Store. It is immutable once built;
// the zero value is not usable, build one with NewPolicy.
type Policy struct {
	field          string
	sentinel       string
	events         map[EventName]bool
	eventsDisabled bool
}

// PolicyOption customizes a Policy under construction.
type PolicyOption func(*Policy)

// WithField sets the marker column. An empty name keeps the default.
func WithField(name string) PolicyOption {
	return func(p *Policy) {
		if name != "" {
			p.field = name
		}
	}
}

// WithSentinel sets a nullable column that holds a non-null value while the
// row is active and is cleared on soft delete. Useful for unique indexes that
// must ignore deleted rows.
func WithSentinel(name string) PolicyOption {
	return func(p *Policy) {
		p.sentinel = name
	}
}

// WithEvent enables or disables emission of one soft-delete event.
// Names outside the soft-delete set are ignored.
func WithEvent(name EventName, enabled bool) PolicyOption {
	return func(p *Policy) {
		if _, ok := p.events[name]; ok {
			p.events[name] = enabled
		}
	}
}

// WithoutEvents turns off all soft-delete event emission. The marker write
// and the cascade still run, but the in-memory model is left as it was.
func WithoutEvents() PolicyOption {
	return func(p *Policy) {
		p.eventsDisabled = true
	}
}

// NewPolicy returns a Policy with defaults merged under opts.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{
		field: DefaultMarkerField,
		events: map[EventName]bool{
			EventDestroying: true,
			EventDestroyed:  true,
			EventSaving:     false,
			EventSaved:      false,
			EventUpdating:   false,
			EventUpdated:    false,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Field returns the marker column name.
func (p *Policy) Field() string { return p.field }

// Sentinel returns the sentinel column name, or "" when none is configured.
func (p *Policy) Sentinel() string { return p.sentinel }

// EventsEnabled reports whether soft-delete events are emitted at all.
func (p *Policy) EventsEnabled() bool { return !p.eventsDisabled }

// EventEnabled reports whether name is emitted during a soft delete.
func (p *Policy) EventEnabled(name EventName) bool {
	return !p.eventsDisabled && p.events[name]
}

func (p *Policy) enabled(names []EventName) []EventName {
	out := make([]EventName, 0, len(names))
	for _, n := range names {
		if p.EventEnabled(n) {
			out = append(out, n)
		}
	}
	return out
}

// PolicyConfig is the YAML shape accepted by ParsePolicy. It can be embedded
// in a larger configuration file.
type PolicyConfig struct {
	Field         string          `yaml:"field"`
	Sentinel      string          `yaml:"sentinel"`
	Events        map[string]bool `yaml:"events"`
	DisableEvents bool            `yaml:"disable_events"`
}

// ParsePolicy builds a Policy from YAML such as:
//
//	field: deleted_at
//	sentinel: active
//	events:
//	  saving: true
func ParsePolicy(data []byte) (*Policy, error) {
	var pc PolicyConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return pc.Policy()
}

// LoadPolicy reads a YAML policy file from path.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// Policy validates the event names and builds the Policy.
func (pc PolicyConfig) Policy() (*Policy, error) {
	opts := []PolicyOption{WithField(pc.Field), WithSentinel(pc.Sentinel)}
	for name, on := range pc.Events {
		ev := EventName(name)
		if !isSoftDeleteEvent(ev) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
		}
		opts = append(opts, WithEvent(ev, on))
	}
	if pc.DisableEvents {
		opts = append(opts, WithoutEvents())
	}
	return NewPolicy(opts...), nil
}

func isSoftDeleteEvent(name EventName) bool {
	for _, n := range preDeleteEvents {
		if n == name {
			return true
		}
	}
	for _, n := range postDeleteEvents {
		if n == name {
			return true
		}
	}
	return false
}
