package token

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/bill-ingest/internal/billing"
)

// DefaultTTL is how long an issued token stays usable
const DefaultTTL = 24 * time.Hour

// State is the lifecycle state of a stored token. Consumed and expired
// tokens are deleted, so they never appear as a stored state.
type State string

const (
	StateValid    State = "valid"
	StateReserved State = "reserved"
)

// Reason explains why a token cannot be used
type Reason string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonAlreadyUsed Reason = "already_used"
	ReasonExpired     Reason = "expired"
)

// QRToken is a single-use access token bound to a document type
type QRToken struct {
	ID           string               `json:"id"`
	DocumentType billing.DocumentType `json:"document_type"`
	CreatedAt    time.Time            `json:"created_at"`
	State        State                `json:"state"`
	UsedAt       *time.Time           `json:"used_at,omitempty"`
}

// ExpiresAt returns when the token stops being usable
func (t *QRToken) ExpiresAt(ttl time.Duration) time.Time {
	return t.CreatedAt.Add(ttl)
}

// Expired reports whether the token is older than ttl at now
func (t *QRToken) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.CreatedAt) > ttl
}

// Validation is the read-only verdict on a token
type Validation struct {
	Valid        bool
	DocumentType billing.DocumentType
	Reason       Reason
	CreatedAt    time.Time
	ExpiresAt    time.Time
	UsedAt       *time.Time
}

// Reservation is the outcome of an attempt to reserve a token
type Reservation struct {
	OK           bool
	DocumentType billing.DocumentType
	Reason       Reason
}

// Store issues tokens and guards their single use. Reserve is an atomic
// check-and-set: of any number of concurrent calls for the same valid token,
// exactly one succeeds.
type Store interface {
	// Issue creates a new valid token for documentType
	Issue(ctx context.Context, documentType billing.DocumentType) (*QRToken, error)

	// Validate reports whether id can be used, without changing it
	Validate(ctx context.Context, id string) (Validation, error)

	// Reserve moves id from valid to reserved
	Reserve(ctx context.Context, id string) (Reservation, error)

	// Release moves a reserved id back to valid so it can be retried.
	// Expired tokens are deleted instead. Missing ids are ignored.
	Release(ctx context.Context, id string) error

	// Consume deletes id
	Consume(ctx context.Context, id string) error

	// Sweep deletes every expired token and returns how many were removed
	Sweep(ctx context.Context) (int, error)

	// TTL is how long an issued token stays usable
	TTL() time.Duration
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// IDGenerator generates token ids
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Option configures a Store implementation
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock TimeSource
	ids   IDGenerator
}

func defaultOptions() options {
	return options{
		ttl:   DefaultTTL,
		clock: defaultTimeSource{},
		ids:   uuidGenerator{},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithTimeSource overrides the wall clock
func WithTimeSource(ts TimeSource) Option {
	return func(o *options) {
		o.clock = ts
	}
}

// WithIDGenerator overrides UUID generation
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// validate applies the token rules shared by every backend. tok is nil when
// the id is unknown.
func validate(tok *QRToken, now time.Time, ttl time.Duration) Validation {
	if tok == nil {
		return Validation{Reason: ReasonNotFound}
	}
	v := Validation{
		DocumentType: tok.DocumentType,
		CreatedAt:    tok.CreatedAt,
		ExpiresAt:    tok.ExpiresAt(ttl),
		UsedAt:       tok.UsedAt,
	}
	switch {
	case tok.Expired(now, ttl):
		v.Reason = ReasonExpired
	case tok.State != StateValid:
		v.Reason = ReasonAlreadyUsed
	default:
		v.Valid = true
	}
	return v
}
