package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"idregistry/internal/registry/metrics"
	"idregistry/internal/registry/models"
	"idregistry/internal/registry/store"
	"idregistry/pkg/domain"
	dErrors "idregistry/pkg/domain-errors"
	"idregistry/pkg/platform/clock"
	"idregistry/pkg/requestcontext"
)

const tracerName = "idregistry/internal/registry/service"

// Publisher receives the events of a committed operation.
type Publisher interface {
	Publish(ctx context.Context, events []models.Event) error
}

// Service is the registry: identity directory, access control ledger, signatory
// registry, approval tracker and transfer coordinator over one transactional
// state.
type Service struct {
	tx        store.Tx
	clock     clock.Clock
	policy    models.Policy
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithPolicy(p models.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithPublisher sets the post-commit event observer.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service. The policy is validated here so a misconfigured
// quorum fails at startup rather than at the first transfer.
func New(tx store.Tx, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, errors.New("registry store is required")
	}
	s := &Service{
		tx:     tx,
		clock:  clock.System(),
		policy: models.DefaultPolicy(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Policy returns the active transfer policy.
func (s *Service) Policy() models.Policy { return s.policy }

// begin opens a span and returns a finisher that records outcome metrics.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("registry.outcome", outcome))
		span.End()
		s.metrics.ObserveOperation(op, outcome, time.Since(start))
	}
}

// publish hands committed events to the observer. Failures are logged only:
// the state change and its event log entry are already durable.
func (s *Service) publish(ctx context.Context, events []models.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events); err != nil {
		s.metrics.IncrementPublishFailures()
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to publish registry events",
				"error", err,
				"event_count", len(events),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// internal wraps infrastructure failures. Domain errors raised inside a
// transaction body pass through untouched.
func internal(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func requireCaller(caller domain.Principal) error {
	if _, err := domain.ParsePrincipal(string(caller)); err != nil {
		return dErrors.New(dErrors.CodeUnauthenticated, "caller principal is required")
	}
	return nil
}

func requirePrincipal(p domain.Principal, field string) error {
	if _, err := domain.ParsePrincipal(string(p)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, field+" must be a valid principal")
	}
	return nil
}

func principalAttr(key string, p domain.Principal) attribute.KeyValue {
	return attribute.String(key, string(p))
}
