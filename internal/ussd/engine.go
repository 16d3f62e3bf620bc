// Package ussd is the session-driven menu engine behind the USSD webhook.
//
// A turn flows through ParseInput, the session store, the transition table
// in transition.go (which may consult one identity resolver and one data
// collaborator), and finally a rendered CON/END screen. Handle never returns
// an error: every failure is mapped onto a terminal screen.
package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/events"
	"github.com/alfredjeanlab/schoolline/internal/idgen"
	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/provider"
	"github.com/alfredjeanlab/schoolline/internal/store"
)

const (
	DefaultCollaboratorTimeout = 3 * time.Second
	defaultOrganization        = "School"
)

// Options configures an Engine.
type Options struct {
	Sessions  store.SessionStore // required
	Turns     store.TurnLog      // optional audit log
	Providers provider.Set       // required
	Publisher events.Publisher   // optional
	Logger    *slog.Logger

	// CountryCode is prepended to national-format caller numbers.
	CountryCode string
	// DefaultOrganization greets callers whose session has no organization.
	DefaultOrganization string
	// CollaboratorTimeout bounds each provider call.
	CollaboratorTimeout time.Duration
}

// Engine handles webhook turns. It is safe for concurrent use.
type Engine struct {
	sessions  store.SessionStore
	turns     store.TurnLog
	providers provider.Set
	publisher events.Publisher
	logger    *slog.Logger

	countryCode string
	defaultOrg  string
	timeout     time.Duration

	now   func() time.Time
	newID func() (string, error)
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Sessions == nil {
		return nil, errors.New("ussd: session store is required")
	}
	if err := opts.Providers.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		sessions:    opts.Sessions,
		turns:       opts.Turns,
		providers:   opts.Providers,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
		countryCode: opts.CountryCode,
		defaultOrg:  opts.DefaultOrganization,
		timeout:     opts.CollaboratorTimeout,
		now:         time.Now,
		newID:       idgen.TurnID,
	}
	if e.publisher == nil {
		e.publisher = events.NoopPublisher{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.countryCode == "" {
		e.countryCode = model.DefaultCountryCode
	}
	if e.defaultOrg == "" {
		e.defaultOrg = defaultOrganization
	}
	if e.timeout <= 0 {
		e.timeout = DefaultCollaboratorTimeout
	}
	return e, nil
}

// outcome is the result of one transition. The state machine decides the
// screen and the next level; Handle persists and reports it.
type outcome struct {
	screen  Screen
	next    model.Level
	persist bool
	kind    model.Outcome

	// set when the identity gate passed on this turn
	account      *model.Account
	organization string

	err error
}

// Handle runs one webhook turn and returns the CON/END response body.
func (e *Engine) Handle(ctx context.Context, turn model.InboundTurn) string {
	return e.Step(ctx, turn).Render()
}

// Step is Handle without rendering.
func (e *Engine) Step(ctx context.Context, turn model.InboundTurn) (screen Screen) {
	start := e.now()
	rec := &model.TurnRecord{
		SessionID:   turn.SessionID,
		ServiceCode: turn.ServiceCode,
		Input:       turn.Text,
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic handling ussd turn", "session_id", turn.SessionID, "panic", r)
			screen = serviceErrorScreen()
			rec.Outcome = model.OutcomeUnavailable
			rec.Terminal = true
			e.finish(ctx, rec, start, nil)
		}
	}()

	if err := ValidateTurn(&turn); err != nil {
		return e.reject(ctx, rec, start, err)
	}
	phone := model.NormalizePhone(turn.PhoneNumber, e.countryCode)
	if phone == "" {
		return e.reject(ctx, rec, start, &Error{Kind: KindMalformed, Cause: fmt.Errorf("phone number %q has no digits", turn.PhoneNumber)})
	}
	rec.PhoneNumber = phone
	in := ParseInput(turn.Text)

	sess, err := e.sessions.GetOrCreate(ctx, turn.SessionID, phone)
	if err != nil {
		e.logger.Error("loading session", "session_id", turn.SessionID, "err", err)
		rec.Outcome = model.OutcomeUnavailable
		rec.Terminal = true
		screen = serviceUnavailableScreen()
		e.finish(ctx, rec, start, nil)
		return screen
	}
	rec.LevelBefore = sess.Level
	rec.LevelAfter = sess.Level

	out := e.transition(ctx, sess, in, phone)
	if err := e.persist(ctx, sess, out); err != nil {
		e.logger.Error("saving session", "session_id", sess.SessionID, "level", out.next, "err", err)
		out = outcome{screen: serviceErrorScreen(), kind: model.OutcomeUnavailable, err: err}
	} else if out.persist {
		rec.LevelAfter = out.next
	}

	rec.Outcome = out.kind
	rec.Terminal = out.screen.Terminal
	if out.screen.OverBudget() {
		e.logger.Warn("screen exceeds soft limit", "session_id", sess.SessionID, "level", rec.LevelAfter,
			"length", len([]rune(out.screen.Render())), "limit", SoftLimit)
	}
	e.logger.Info("ussd turn",
		"session_id", sess.SessionID,
		"level", rec.LevelBefore,
		"next", rec.LevelAfter,
		"input", in.Latest,
		"outcome", out.kind,
	)
	e.finish(ctx, rec, start, &out)
	return out.screen
}

func (e *Engine) reject(ctx context.Context, rec *model.TurnRecord, start time.Time, err error) Screen {
	e.logger.Warn("rejected ussd turn", "session_id", rec.SessionID, "err", err)
	rec.Outcome = model.OutcomeMalformed
	rec.Terminal = true
	e.finish(ctx, rec, start, nil)
	return serviceErrorScreen()
}

func (e *Engine) persist(ctx context.Context, sess *model.DialSession, out outcome) error {
	if out.organization != "" && out.organization != sess.Organization {
		if err := e.sessions.SetOrganization(ctx, sess.SessionID, out.organization); err != nil {
			return fmt.Errorf("set organization: %w", err)
		}
	}
	if !out.persist {
		return nil
	}
	if err := e.sessions.SetLevel(ctx, sess.SessionID, out.next); err != nil {
		return fmt.Errorf("set level: %w", err)
	}
	return nil
}

// finish appends the turn to the audit log and publishes its events. Neither
// may change the reply, so failures are only logged.
func (e *Engine) finish(ctx context.Context, rec *model.TurnRecord, start time.Time, out *outcome) {
	ctx = context.WithoutCancel(ctx)
	now := e.now()
	rec.CreatedAt = now.UTC()
	rec.DurationMS = now.Sub(start).Milliseconds()

	if e.turns != nil {
		id, err := e.newID()
		if err != nil {
			e.logger.Warn("generating turn id", "err", err)
		} else {
			rec.ID = id
			if err := e.turns.RecordTurn(ctx, rec); err != nil {
				e.logger.Warn("recording turn", "session_id", rec.SessionID, "err", err)
			}
		}
	}

	if out != nil {
		switch {
		case out.account != nil:
			e.publish(ctx, events.TopicSessionStarted, events.SessionStarted{
				SessionID:    rec.SessionID,
				PhoneNumber:  rec.PhoneNumber,
				AccountName:  out.account.Name,
				Category:     out.account.Category,
				Organization: out.organization,
				At:           rec.CreatedAt,
			})
		case out.kind == model.OutcomeUnregistered:
			e.publish(ctx, events.TopicCallerUnregistered, events.CallerUnregistered{
				SessionID:   rec.SessionID,
				PhoneNumber: rec.PhoneNumber,
				At:          rec.CreatedAt,
			})
		}
		var uerr *Error
		if errors.As(out.err, &uerr) && uerr.Kind == KindUnavailable {
			e.logger.Error("collaborator failed", "session_id", rec.SessionID, "feature", uerr.Feature, "err", uerr.Cause)
			e.publish(ctx, events.TopicCollaboratorFailed, events.CollaboratorFailed{
				SessionID: rec.SessionID,
				Feature:   uerr.Feature,
				Level:     rec.LevelBefore,
				Error:     uerr.Cause.Error(),
				At:        rec.CreatedAt,
			})
		}
	}
	e.publish(ctx, events.TopicTurnCompleted, events.TurnCompleted{Turn: rec})
}

func (e *Engine) publish(ctx context.Context, topic string, event any) {
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		e.logger.Warn("publishing event", "topic", topic, "err", err)
	}
}

func (e *Engine) organization(s *model.DialSession) string {
	if s.Organization != "" {
		return s.Organization
	}
	return e.defaultOrg
}
