package placement

import (
	"context"
	"strings"
	"time"

	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/platform/apperr"
	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/platform/metrics"
	"pet-rehoming/internal/ports/auth"
	"pet-rehoming/internal/ports/notifications"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultNotifyTimeout = 2 * time.Second

// Actor es la identidad que llega del contexto de auth. El motor no autentica,
// solo autoriza contra esto.
type Actor struct {
	UserID string
	Role   auth.Role
}

func ActorFromClaims(c auth.Claims) Actor {
	return Actor{UserID: c.UserID, Role: c.Role}
}

func (a Actor) IsAdmin() bool { return a.Role == auth.RoleAdmin }

// Service es el motor de ciclo de vida de placement. Cada operación corre en
// una sola transacción del Store y notifica recién después del commit.
type Service struct {
	tx      Transactor
	checker *capabilities.Checker
	sink    notifications.Sink

	log           logger.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	notifyTimeout time.Duration

	now   func() time.Time
	newID func() string
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(tx Transactor, checker *capabilities.Checker, sink notifications.Sink, opts ...Option) *Service {
	s := &Service{
		tx:            tx,
		checker:       checker,
		sink:          sink,
		log:           logger.Nop(),
		tracer:        otel.Tracer("pet-rehoming/placement"),
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// outbox junta las notificaciones de una transición; se envían solo si hubo commit.
type outbox struct {
	items []notifications.Notification
}

func (o *outbox) add(userID, message, link, event string, data map[string]any) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	d := map[string]any{"event": event}
	for k, v := range data {
		d[k] = v
	}
	o.items = append(o.items, notifications.Notification{
		UserID:  userID,
		Message: message,
		Link:    link,
		Data:    d,
	})
}

// transition corre fn en una transacción con span, métricas y despacho de notificaciones.
func (s *Service) transition(ctx context.Context, entity, action string, fn func(ctx context.Context, st Store, out *outbox) error) error {
	ctx, span := s.tracer.Start(ctx, "placement."+entity+"."+action,
		trace.WithAttributes(
			attribute.String("placement.entity", entity),
			attribute.String("placement.action", action),
		))
	defer span.End()

	start := time.Now()
	var out outbox
	err := s.tx.RunInTx(ctx, func(st Store) error {
		out = outbox{}
		return fn(ctx, st, &out)
	})
	err = translate(err)

	outcome := "ok"
	if err != nil {
		kind := apperr.KindOf(err)
		outcome = string(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if kind == apperr.KindInternal {
			s.log.Error("placement transition failed", map[string]any{
				"entity": entity,
				"action": action,
				"err":    err,
			})
		}
	}
	s.metrics.ObserveTransition(entity, action, outcome, time.Since(start))
	if err != nil {
		return err
	}

	s.dispatch(ctx, entity, action, out.items)
	return nil
}

// view corre una lectura sin bloquear filas.
func (s *Service) view(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	err := s.tx.View(ctx, func(st Store) error { return fn(ctx, st) })
	return translate(err)
}

// dispatch es best-effort: un fallo del sink se loguea y se cuenta, nunca se devuelve.
func (s *Service) dispatch(ctx context.Context, entity, action string, items []notifications.Notification) {
	if s.sink == nil || len(items) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	for _, n := range items {
		if err := s.sink.Notify(ctx, n); err != nil {
			s.metrics.IncNotification("failed")
			s.log.Warn("notification failed", map[string]any{
				"entity":  entity,
				"action":  action,
				"user_id": n.UserID,
				"err":     err,
			})
			continue
		}
		s.metrics.IncNotification("sent")
	}
}

func (s *Service) requireCapability(ctx context.Context, pet PetRef, c capabilities.Capability) error {
	if s.checker == nil {
		return nil
	}
	return s.checker.Require(ctx, capabilities.Subject{PetID: pet.ID, PetType: pet.Species}, c)
}

func timePtr(t time.Time) *time.Time { return &t }
