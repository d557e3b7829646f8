// Package codegen allocates the human-readable reference codes printed on
// shelter boards, rescue dispatch sheets and call logs.
//
// A code is <PREFIX>-<YYYY>-<sequence padded to 5 digits>. The sequence comes
// from a SequenceSource and is only a hint: uniqueness is enforced by the
// store's unique index, and Generate retries the caller's whole create
// transaction with a fresh hint when the store reports a collision.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/requestcontext"
)

// Kind identifies the entity a code is allocated for.
type Kind string

const (
	KindShelter         Kind = "shelter"
	KindRescueOperation Kind = "rescue_operation"
	KindEmergencyCall   Kind = "emergency_call"
	KindDisplacedPerson Kind = "displaced_person"
	KindFamilyGroup     Kind = "family_group"
)

var prefixes = map[Kind]string{
	KindShelter:         "SHL",
	KindRescueOperation: "RSC",
	KindEmergencyCall:   "ECL",
	KindDisplacedPerson: "DPR",
	KindFamilyGroup:     "FAM",
}

// Prefix returns the code prefix for k, or "" for an unknown kind.
func (k Kind) Prefix() string {
	return prefixes[k]
}

func (k Kind) IsValid() bool {
	_, ok := prefixes[k]
	return ok
}

// Kinds lists every kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindShelter, KindRescueOperation, KindEmergencyCall, KindDisplacedPerson, KindFamilyGroup}
}

// Format renders a code, e.g. Format(KindRescueOperation, 2026, 42) = "RSC-2026-00042".
// Sequences wider than five digits are printed in full.
func Format(kind Kind, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%05d", kind.Prefix(), year, seq)
}

// SequenceSource hands out the next sequence hint for a kind.
type SequenceSource interface {
	Next(ctx context.Context, kind Kind) (int64, error)
}

// DefaultMaxAttempts bounds the collision retry loop.
const DefaultMaxAttempts = 5

// Generator allocates codes and drives the collision retry loop.
type Generator struct {
	source      SequenceSource
	maxAttempts int
	logger      *slog.Logger
	metrics     *Metrics
}

// Option configures a Generator.
type Option func(*Generator)

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func New(source SequenceSource, opts ...Option) *Generator {
	g := &Generator{
		source:      source,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate computes a code and passes it to create, which must perform the
// entire insert (and anything that has to commit with it) and return the
// store's error unchanged. When create fails with sentinel.ErrConflict the
// code was taken by a concurrent writer: a new hint is drawn and create is
// called again. Any other error is returned as is. The committed code is
// returned on success.
func (g *Generator) Generate(ctx context.Context, kind Kind, create func(ctx context.Context, code string) error) (string, error) {
	if !kind.IsValid() {
		return "", dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown code kind %q", kind))
	}
	year := requestcontext.Now(ctx).Year()

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		seq, err := g.source.Next(ctx, kind)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to draw code sequence")
		}
		code := Format(kind, year, seq)

		err = create(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return "", err
		}

		g.metrics.IncrementCollision(kind)
		g.logger.WarnContext(ctx, "reference code collision, retrying",
			"kind", kind,
			"code", code,
			"attempt", attempt,
		)
	}

	g.metrics.IncrementExhausted(kind)
	return "", dErrors.New(dErrors.CodeConflict,
		fmt.Sprintf("could not allocate unique %s code after %d attempts", kind, g.maxAttempts))
}
