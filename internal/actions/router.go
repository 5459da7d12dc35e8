package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

const (
	idempotencyModule = "reports"
	approvalModule    = "alerts"
)

// Locker hands out per-key exclusive locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// IdempotencyStore rejects duplicate submission keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ApprovalRecorder keeps the decision trail of alerts.
type ApprovalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Enqueuer schedules escalation of a submitted report.
type Enqueuer interface {
	EnqueueEscalation(ctx context.Context, reportID string) error
}

// Observer receives one result label per dispatch.
type Observer interface {
	ObserveDispatch(action, result string)
}

// Invalidator drops derived views, such as dashboard counters, after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps bundles the router's collaborators. Reports and Alerts are required;
// the rest may be nil.
type Deps struct {
	Reports     reports.Sink
	Alerts      alerts.Sink
	Locks       Locker
	Idempotency IdempotencyStore
	Audit       shared.AuditRecorder
	Approvals   ApprovalRecorder
	Jobs        Enqueuer
	Observer    Observer
	Views       Invalidator
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Router lists and dispatches actions. Every dispatch re-checks the
// capability table regardless of what the caller was shown.
type Router struct {
	deps     Deps
	validate *validator.Validate
}

// NewRouter constructs a Router.
func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Router{deps: deps, validate: validator.New()}
}

// AvailableActions returns the permitted actions for the fitting in catalog
// order. act_on_alert is offered only while the fitting has a pending alert.
func (r *Router) AvailableActions(ctx context.Context, p rbac.Principal, rec fittings.Record) ([]rbac.Action, error) {
	out := make([]rbac.Action, 0, len(rbac.Catalog()))
	for _, action := range rbac.Catalog() {
		if !rbac.IsPermitted(p.Role, action) {
			continue
		}
		if action == rbac.ActionActOnAlert {
			pending, err := r.deps.Alerts.PendingForFitting(ctx, rec.FittingID)
			if err != nil {
				return nil, fmt.Errorf("pending alerts for %s: %w: %v", rec.FittingID, shared.ErrCollaboratorUnavailable, err)
			}
			if !pending {
				continue
			}
		}
		out = append(out, action)
	}
	return out, nil
}

// Dispatch executes cmd on behalf of p.
func (r *Router) Dispatch(ctx context.Context, p rbac.Principal, cmd Command) (Outcome, error) {
	cmd, ok := normalize(cmd)
	if !ok {
		return Outcome{}, ErrUnknownCommand
	}
	action := cmd.Action()
	out, err := r.dispatch(ctx, p, cmd)
	r.observe(action, err)
	if err == nil && r.deps.Views != nil {
		if ierr := r.deps.Views.Invalidate(ctx); ierr != nil {
			r.deps.Logger.Warn("invalidate views", slog.Any("error", ierr))
		}
	}
	if err != nil {
		level := slog.LevelWarn
		if !isClientError(err) {
			level = slog.LevelError
		}
		r.deps.Logger.Log(ctx, level, "dispatch failed",
			slog.String("action", string(action)),
			slog.String("user", p.Username),
			slog.String("role", string(p.Role)),
			slog.Any("error", err),
		)
	}
	return out, err
}

func (r *Router) dispatch(ctx context.Context, p rbac.Principal, cmd Command) (Outcome, error) {
	if err := rbac.Authorize(p, cmd.Action()); err != nil {
		return Outcome{}, err
	}
	switch c := cmd.(type) {
	case ReportFault:
		return r.reportFault(ctx, p, c)
	case AlertDecision:
		return r.decide(ctx, p, c)
	default:
		return Outcome{}, ErrUnknownCommand
	}
}

// normalize dereferences pointer commands so the rest of dispatch only sees
// values. Nil commands, typed or not, are rejected.
func normalize(cmd Command) (Command, bool) {
	switch c := cmd.(type) {
	case ReportFault, AlertDecision:
		return c, true
	case *ReportFault:
		if c == nil {
			return nil, false
		}
		return *c, true
	case *AlertDecision:
		if c == nil {
			return nil, false
		}
		return *c, true
	default:
		return nil, false
	}
}

func (r *Router) reportFault(ctx context.Context, p rbac.Principal, c ReportFault) (Outcome, error) {
	report := reports.FaultReport{
		FittingID:    c.FittingID,
		FaultType:    c.FaultType,
		Severity:     c.Severity,
		Description:  c.Description,
		Location:     c.Location,
		ReportedBy:   p.Username,
		ReportedDate: r.deps.Clock().UTC(),
	}
	if err := reports.Validate(&report); err != nil {
		return Outcome{}, err
	}

	release, err := r.lock(ctx, "report")
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	key := strings.TrimSpace(c.IdempotencyKey)
	if key != "" && r.deps.Idempotency != nil {
		if err := r.deps.Idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return Outcome{}, err
			}
			return Outcome{}, fmt.Errorf("idempotency check: %w: %v", shared.ErrCollaboratorUnavailable, err)
		}
	}

	reportID, err := r.deps.Reports.Submit(ctx, report)
	if err != nil {
		if key != "" && r.deps.Idempotency != nil {
			if delErr := r.deps.Idempotency.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				r.deps.Logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Outcome{}, sinkError("submit report", err)
	}

	out := Outcome{Action: rbac.ActionReportFault, ReportID: reportID, Severity: report.Severity}
	r.audit(ctx, p, "report.submit", "fault_report", reportID, map[string]any{
		"fitting_id": report.FittingID,
		"fault_type": report.FaultType,
		"severity":   string(report.Severity),
	})
	if report.Severity.Escalates() && r.deps.Jobs != nil {
		if err := r.deps.Jobs.EnqueueEscalation(ctx, reportID); err != nil {
			r.deps.Logger.Warn("enqueue escalation", slog.String("report_id", reportID), slog.Any("error", err))
		} else {
			out.Escalated = true
		}
	}
	return out, nil
}

func (r *Router) decide(ctx context.Context, p rbac.Principal, c AlertDecision) (Outcome, error) {
	c.Note = strings.TrimSpace(c.Note)
	if err := r.validate.Struct(c); err != nil {
		return Outcome{}, decisionValidationError(err)
	}

	release, err := r.lock(ctx, "decision")
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	if err := r.deps.Alerts.SetDecision(ctx, c.AlertID, c.Decision, p); err != nil {
		return Outcome{}, sinkError("set alert decision", err)
	}

	status := alerts.StatusFor(c.Decision)
	ref := strconv.FormatInt(c.AlertID, 10)
	if r.deps.Approvals != nil {
		action := shared.ApprovalReject
		if c.Decision == rbac.DecisionApprove {
			action = shared.ApprovalApprove
		}
		err := r.deps.Approvals.Record(ctx, shared.ApprovalLog{
			Module:  approvalModule,
			RefID:   ref,
			ActorID: p.UserID,
			Action:  action,
			Note:    c.Note,
			At:      r.deps.Clock().UTC(),
		})
		if err != nil {
			r.deps.Logger.Warn("record approval", slog.String("alert_id", ref), slog.Any("error", err))
		}
	}
	r.audit(ctx, p, "alert."+string(c.Decision), "alert", ref, map[string]any{"status": string(status)})
	return Outcome{Action: rbac.ActionActOnAlert, AlertID: c.AlertID, Status: string(status)}, nil
}

func (r *Router) lock(ctx context.Context, kind string) (func(), error) {
	if r.deps.Locks == nil {
		return func() {}, nil
	}
	release, err := r.deps.Locks.Acquire(ctx, shared.DispatchLockKey(dispatchKey(ctx), kind))
	if err != nil {
		if errors.Is(err, shared.ErrLockHeld) {
			return nil, ErrDispatchInFlight
		}
		return nil, fmt.Errorf("acquire dispatch lock: %w: %v", shared.ErrCollaboratorUnavailable, err)
	}
	return release, nil
}

func (r *Router) audit(ctx context.Context, p rbac.Principal, action, entity, id string, meta map[string]any) {
	if r.deps.Audit == nil {
		return
	}
	err := r.deps.Audit.Record(ctx, shared.AuditLog{
		ActorID:   p.UserID,
		ActorName: p.Username,
		ActorRole: string(p.Role),
		Action:    action,
		Entity:    entity,
		EntityID:  id,
		Meta:      meta,
		At:        r.deps.Clock().UTC(),
	})
	if err != nil {
		r.deps.Logger.Warn("audit dispatch", slog.String("action", action), slog.Any("error", err))
	}
}

func (r *Router) observe(action rbac.Action, err error) {
	if r.deps.Observer == nil {
		return
	}
	r.deps.Observer.ObserveDispatch(string(action), resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrAuthorizationDenied):
		return "denied"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func isClientError(err error) bool {
	return resultLabel(err) != "error"
}

// sinkError passes business outcomes through and marks everything else as a
// collaborator failure.
func sinkError(op string, err error) error {
	switch {
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrAuthorizationDenied),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrCollaboratorUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, shared.ErrCollaboratorUnavailable, err)
	}
}

func decisionValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	ve := &shared.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		switch fe.Field() {
		case "AlertID":
			ve.Fields["alert_id"] = "must be a positive id"
		case "Decision":
			ve.Fields["decision"] = "must be approve or reject"
		default:
			ve.Fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return ve
}

func dispatchKey(ctx context.Context) string {
	if key := shared.SessionKeyFromContext(ctx); key != "" {
		return key
	}
	if p, ok := rbac.PrincipalFromContext(ctx); ok {
		return "user:" + strconv.FormatInt(p.UserID, 10)
	}
	return "anonymous"
}
