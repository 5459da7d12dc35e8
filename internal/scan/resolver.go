package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Decoder reads or reconstructs a fitting identifier from an image.
type Decoder interface {
	Decode(ctx context.Context, image []byte) (DecodeOutcome, error)
}

// FittingStore resolves identifiers to records.
type FittingStore interface {
	Lookup(ctx context.Context, id string) (fittings.Record, error)
}

// Observer receives every observable outcome. Superseded attempts are not reported.
type Observer interface {
	ObserveScan(kind, reason string)
}

// Result is the outcome of one attempt. Fitting is set only when Resolution
// is Decoded or Reconstructed.
type Result struct {
	Resolution Resolution
	Fitting    fittings.Record
	Path       []State
	At         time.Time
}

type slot struct {
	seq     uint64
	cancel  context.CancelFunc
	latest  *Result
	touched time.Time
}

// Resolver runs the identification pipeline. At most one attempt per
// session key is active: a new Submit cancels the previous attempt and the
// previous attempt's result is discarded.
type Resolver struct {
	decoder  Decoder
	store    FittingStore
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mu    sync.Mutex
	slots map[string]*slot
}

// NewResolver constructs a Resolver. observer may be nil.
func NewResolver(decoder Decoder, store FittingStore, observer Observer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		decoder:  decoder,
		store:    store,
		logger:   logger,
		observer: observer,
		now:      time.Now,
		slots:    make(map[string]*slot),
	}
}

// Submit resolves the attempt for the session. Failures are returned as a
// *ResolutionError together with a Result holding the Failed variant.
func (r *Resolver) Submit(ctx context.Context, sessionKey string, attempt Attempt) (Result, error) {
	if err := validateAttempt(attempt); err != nil {
		return Result{}, err
	}

	seq, attemptCtx := r.begin(ctx, sessionKey)
	res, err := r.run(attemptCtx, attempt)

	if ctx.Err() != nil {
		r.release(sessionKey, seq)
		return Result{}, ctx.Err()
	}
	if res.Resolution == nil {
		r.release(sessionKey, seq)
		return Result{}, err
	}
	if !r.finish(sessionKey, seq, res) {
		r.logger.Debug("scan attempt superseded", slog.String("session", shortKey(sessionKey)), slog.Uint64("seq", seq))
		return Result{}, ErrSuperseded
	}

	reason := ""
	if f, ok := res.Resolution.(Failed); ok {
		reason = string(f.Reason)
	}
	if r.observer != nil {
		r.observer.ObserveScan(res.Resolution.Label(), reason)
	}
	r.logger.Info("scan resolved",
		slog.String("input", string(attempt.Kind)),
		slog.String("kind", res.Resolution.Label()),
		slog.String("reason", reason),
		slog.String("fitting_id", res.Fitting.FittingID),
	)
	return res, err
}

// Latest returns the last observable result for the session.
func (r *Resolver) Latest(sessionKey string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[sessionKey]
	if !ok || s.latest == nil {
		return Result{}, false
	}
	return *s.latest, true
}

// Forget drops all state for a session, cancelling any in-flight attempt.
func (r *Resolver) Forget(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[sessionKey]; ok {
		if s.cancel != nil {
			s.cancel()
		}
		delete(r.slots, sessionKey)
	}
}

// Sweep removes idle sessions not touched since cutoff and returns how many were dropped.
func (r *Resolver) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for key, s := range r.slots {
		if s.cancel == nil && s.touched.Before(cutoff) {
			delete(r.slots, key)
			dropped++
		}
	}
	return dropped
}

func (r *Resolver) begin(ctx context.Context, key string) (uint64, context.Context) {
	attemptCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[key]
	if !ok {
		s = &slot{}
		r.slots[key] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.cancel = cancel
	s.touched = r.now()
	return s.seq, attemptCtx
}

// finish stores res when seq is still current and reports whether it was.
func (r *Resolver) finish(key string, seq uint64, res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[key]
	if !ok || s.seq != seq {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.latest = &res
	s.touched = r.now()
	return true
}

func (r *Resolver) release(key string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[key]; ok && s.seq == seq && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (r *Resolver) run(ctx context.Context, attempt Attempt) (Result, error) {
	m := NewMachine()
	res := Result{At: attempt.At}
	if res.At.IsZero() {
		res.At = r.now()
	}
	fail := func(reason FailureReason, cause error) (Result, error) {
		if err := m.To(StateFailed); err != nil {
			return Result{}, err
		}
		res.Resolution = Failed{Reason: reason}
		res.Path = m.Path()
		return res, failure(reason, cause)
	}

	if err := m.To(StateSubmitted); err != nil {
		return Result{}, err
	}

	var resolution Resolution
	switch attempt.Kind {
	case InputManualID:
		resolution = Decoded{FittingID: strings.TrimSpace(attempt.ManualID)}
	case InputImage:
		if err := m.To(StateDecoding); err != nil {
			return Result{}, err
		}
		outcome, err := r.decoder.Decode(ctx, attempt.Image)
		if err != nil {
			return fail(ReasonIOError, collaboratorError("decode", err))
		}
		switch outcome.Kind {
		case OutcomeDirect:
			resolution = Decoded{FittingID: strings.TrimSpace(outcome.FittingID)}
		case OutcomeReconstructed:
			if err := m.To(StateReconstructing); err != nil {
				return Result{}, err
			}
			resolution = Reconstructed{FittingID: strings.TrimSpace(outcome.FittingID), Confidence: outcome.Confidence}
		case OutcomeReconstructionFailed:
			if err := m.To(StateReconstructing); err != nil {
				return Result{}, err
			}
			return fail(ReasonReconstructionFailed, nil)
		default:
			return fail(ReasonNoCodeFound, nil)
		}
	}

	id, _ := FittingIDOf(resolution)
	if id == "" {
		return fail(ReasonNoCodeFound, nil)
	}
	rec, err := r.store.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fail(ReasonLookupNotFound, err)
		}
		return fail(ReasonIOError, collaboratorError("lookup", err))
	}
	if err := m.To(StateResolved); err != nil {
		return Result{}, err
	}
	res.Resolution = resolution
	res.Fitting = rec
	res.Path = m.Path()
	return res, nil
}

func validateAttempt(a Attempt) error {
	switch a.Kind {
	case InputManualID:
		if strings.TrimSpace(a.ManualID) == "" {
			return shared.NewValidationError("fitting_id", "required")
		}
	case InputImage:
		if len(a.Image) == 0 {
			return shared.NewValidationError("image", "required")
		}
	default:
		return shared.NewValidationError("kind", "must be image or manual_id")
	}
	return nil
}

func collaboratorError(op string, err error) error {
	if errors.Is(err, shared.ErrCollaboratorUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, shared.ErrCollaboratorUnavailable, err)
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
