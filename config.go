package tombstone

import (
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds configuration for a Store.
type Config struct {
	DB     DBAdapter   // User must initialize and provide
	Policy *Policy     // Defaults to NewPolicy()
	Logger *zap.Logger // Defaults to a no-op logger
	Now    func() time.Time
}

// Store binds a database adapter to a soft-delete Policy and owns the event
// buses of every model type used through it.
type Store struct {
	db     DBAdapter
	policy *Policy
	logger *zap.Logger
	now    func() time.Time

	busMu sync.Mutex
	buses map[reflect.Type]*EventBus
}

// Open validates cfg and returns a Store.
func Open(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, ErrDatabaseNotSet
	}
	s := &Store{
		db:     cfg.DB,
		policy: cfg.Policy,
		logger: cfg.Logger,
		now:    cfg.Now,
		buses:  make(map[reflect.Type]*EventBus),
	}
	if s.policy == nil {
		s.policy = NewPolicy()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger.Debug("store opened",
		zap.String("dialect", cfg.DB.DialectName()),
		zap.String("marker", s.policy.Field()),
		zap.String("sentinel", s.policy.Sentinel()),
		zap.Bool("events", s.policy.EventsEnabled()),
	)
	return s, nil
}

// DB returns the adapter the Store was opened with.
func (s *Store) DB() DBAdapter { return s.db }

// Policy returns the Store's soft-delete policy.
func (s *Store) Policy() *Policy { return s.policy }

// Logger returns the Store's logger.
func (s *Store) Logger() *zap.Logger { return s.logger }

// Events returns the event bus for model's type. model may be a struct value,
// a pointer to one, or a reflect.Type.
func (s *Store) Events(model interface{}) *EventBus {
	var t reflect.Type
	if rt, ok := model.(reflect.Type); ok {
		t = rt
	} else {
		t = reflect.TypeOf(model)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	s.busMu.Lock()
	defer s.busMu.Unlock()
	bus, ok := s.buses[t]
	if !ok {
		bus = NewEventBus()
		s.buses[t] = bus
	}
	return bus
}

// executor returns the caller's transaction when one is set.
func (s *Store) executor(opts Options) Executor {
	if opts.Transacting != nil {
		return opts.Transacting
	}
	return s.db
}
