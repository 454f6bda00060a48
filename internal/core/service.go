package core

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JonMunkholm/dayroster/internal/reconcile"
)

// DefaultMaxFileSize bounds roster uploads.
const DefaultMaxFileSize int64 = 20 << 20

// DefaultSyncTimeout bounds a single run.
const DefaultSyncTimeout = 5 * time.Minute

// Service runs roster reconciliation and serves the run history and
// room-mapping admin operations.
type Service struct {
	patients  PatientStore
	directory Directory
	runs      RunStore
	mappings  MappingStore
	tx        Transactor
	notifier  Notifier

	limiter *RunLimiter
	locks   chainLocks

	engine      *reconcile.Engine
	validate    *validator.Validate
	maxFileSize int64
	timeout     time.Duration
	atomic      bool

	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithThreshold sets the lowest day-hospital room number.
func WithThreshold(n int) Option {
	return func(s *Service) { s.engine = reconcile.NewEngine(n) }
}

func WithMaxFileSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithTimeout bounds each run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLimiter replaces the in-process run limiter.
func WithLimiter(l *RunLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithRunLock adds a lock taken after the in-process limiter, typically a
// RedisRunLock shared by every instance.
func WithRunLock(l RunLock) Option {
	return func(s *Service) {
		if l != nil {
			s.locks = append(s.locks, l)
		}
	}
}

// WithAtomicApply applies every write of a run in one transaction. It has no
// effect unless the patient store implements Transactor or WithTransactor is set.
func WithAtomicApply(enabled bool) Option {
	return func(s *Service) { s.atomic = enabled }
}

func WithTransactor(tx Transactor) Option {
	return func(s *Service) { s.tx = tx }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMappingStore(m MappingStore) Option {
	return func(s *Service) { s.mappings = m }
}

// WithClock overrides time and id generation.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService wires the coordinator over its collaborators.
func NewService(patients PatientStore, directory Directory, runs RunStore, opts ...Option) *Service {
	s := &Service{
		patients:    patients,
		directory:   directory,
		runs:        runs,
		engine:      reconcile.NewEngine(reconcile.DefaultThreshold),
		validate:    validator.New(),
		maxFileSize: DefaultMaxFileSize,
		timeout:     DefaultSyncTimeout,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewRunLimiter(1, DefaultLockWait)
	}
	if s.tx == nil {
		if tx, ok := patients.(Transactor); ok {
			s.tx = tx
		}
	}
	return s
}

// NewPostgresService backs every collaborator with the same store.
func NewPostgresService(store *PgStore, opts ...Option) *Service {
	base := []Option{WithMappingStore(store)}
	return NewService(store, store, store, append(base, opts...)...)
}

// Limiter exposes the run limiter for health reporting and shutdown.
func (s *Service) Limiter() *RunLimiter { return s.limiter }

// AtomicApply reports whether real runs write inside a single transaction.
func (s *Service) AtomicApply() bool { return s.atomic && s.tx != nil }

// Threshold returns the configured day-hospital room cutoff.
func (s *Service) Threshold() int { return s.engine.Threshold() }

// SyncStatus reports whether a real run currently holds the local run slot.
func (s *Service) SyncStatus() RunLimiterStatus { return s.limiter.Status() }
