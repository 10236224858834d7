package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	contract "vcregistry/contracts/credential"
	"vcregistry/internal/credential/events"
	"vcregistry/internal/credential/metrics"
	"vcregistry/internal/credential/models"
	"vcregistry/internal/credential/store"
	"vcregistry/internal/platform/tracer"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/clock"
	"vcregistry/pkg/requestcontext"
)

// Store persists credentials by key.
type Store interface {
	Insert(ctx context.Context, credential models.Credential) error
	FindByKey(ctx context.Context, key models.Key) (*models.Credential, error)
	Update(ctx context.Context, credential models.Credential) error
}

// StoreTx runs fn as one all-or-nothing unit, serialized against other
// transactions on the same key. fn must use the Store it is given.
type StoreTx interface {
	RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context, store Store) error) error
}

// EventPublisher delivers lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event contract.Event) error
}

var errNotIssuer = dErrors.New(dErrors.CodeForbidden, "only the issuer may revoke this credential")

// Operation names used in logs and metrics.
const (
	opIssue    = "issue"
	opRevoke   = "revoke"
	opValidity = "is_valid"
	opGet      = "get"
)

type Option func(*Service)

// Service is the credential registry: issue, revoke, validity and lookup over
// a composite subject/CID key.
type Service struct {
	store     Store
	tx        StoreTx
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	clock     clock.Clock
	txTimeout time.Duration
}

// New builds a Service over st. Without WithStoreTx, mutations are serialized
// by an in-process sharded lock, which is only correct for single-process
// stores.
func New(st Store, opts ...Option) *Service {
	svc := &Service{
		store:     st,
		publisher: events.NoopPublisher{},
		logger:    slog.New(slog.DiscardHandler),
		tracer:    tracer.NewNoop(),
		clock:     clock.NewMonotonic(nil),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.tx == nil {
		svc.tx = NewShardedTx(st, svc.txTimeout, svc.metrics)
	}
	return svc
}

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithTxTimeout bounds the default in-memory transaction runner.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.txTimeout = d
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for calls whose context carries no pinned
// request time. Share it with the requesttime middleware so both paths stay
// on one non-decreasing clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Issue records a new credential issued by caller. The key must never have
// been used before; a revoked credential still occupies its key.
func (s *Service) Issue(ctx context.Context, caller id.CallerID, req models.IssueRequest) (_ *models.CredentialView, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialIssue,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubject(req.SubjectDID)),
		tracer.String(tracer.AttrCaller, caller.String()),
	)
	defer func() { span.End(err) }()

	if err := models.ValidateLookup(req.SubjectDID, req.CID); err != nil {
		return nil, s.reject(ctx, opIssue, err)
	}
	if caller.IsNil() {
		return nil, s.reject(ctx, opIssue, dErrors.New(dErrors.CodeUnauthorized, "caller identity required"))
	}

	now := s.now(ctx)
	credential := models.Credential{
		SubjectDID: req.SubjectDID,
		Issuer:     caller,
		CID:        req.CID,
		IssuedAt:   now,
		ExpiresAt:  req.ExpiresAt,
	}

	err = s.tx.RunInTx(ctx, credential.Key(), func(ctx context.Context, st Store) error {
		return s.timed("insert", func() error {
			return st.Insert(ctx, credential)
		})
	})
	if err != nil {
		return nil, s.reject(ctx, opIssue, s.translate(err))
	}

	s.metrics.IncIssued()
	span.AddEvent(tracer.EventCommitted)
	s.logger.InfoContext(ctx, "credential issued",
		"key", credential.Key().String(),
		"issuer", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, contract.EventIssued, credential, caller, now)

	return credential.ToView(), nil
}

// Revoke marks the credential revoked. Only the original issuer may revoke;
// repeating the call is a successful no-op.
func (s *Service) Revoke(ctx context.Context, caller id.CallerID, subjectDID, cid string) (_ *models.CredentialView, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialRevoke,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubject(subjectDID)),
		tracer.String(tracer.AttrCaller, caller.String()),
	)
	defer func() { span.End(err) }()

	if err := models.ValidateLookup(subjectDID, cid); err != nil {
		return nil, s.reject(ctx, opRevoke, err)
	}

	key := models.KeyFor(subjectDID, cid)
	var (
		revoked    models.Credential
		wasRevoked bool
	)
	err = s.tx.RunInTx(ctx, key, func(ctx context.Context, st Store) error {
		var existing *models.Credential
		if err := s.timed("find", func() (err error) {
			existing, err = st.FindByKey(ctx, key)
			return err
		}); err != nil {
			return err
		}
		if !existing.IsIssuedBy(caller) {
			return errNotIssuer
		}

		wasRevoked = existing.Revoked
		existing.Revoke()
		if err := s.timed("update", func() error {
			return st.Update(ctx, *existing)
		}); err != nil {
			return err
		}
		revoked = *existing
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, opRevoke, s.translate(err))
	}

	s.metrics.IncRevoked()
	span.AddEvent(tracer.EventCommitted)
	if !wasRevoked {
		s.logger.InfoContext(ctx, "credential revoked",
			"key", key.String(),
			"issuer", caller.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		s.publish(ctx, contract.EventRevoked, revoked, caller,
			s.now(ctx))
	}

	return revoked.ToView(), nil
}

// now is the request's pinned time, or the service clock outside a request.
func (s *Service) now(ctx context.Context) models.Timestamp {
	if t, ok := requestcontext.TimeFrom(ctx); ok {
		return models.TimestampFrom(t)
	}
	return models.TimestampFrom(s.clock.Now())
}

// IsValid reports whether a credential exists, is not revoked and has not
// expired. Missing credentials are simply not valid.
func (s *Service) IsValid(ctx context.Context, subjectDID, cid string) (_ bool, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialValidity,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubject(subjectDID)),
	)
	defer func() { span.End(err) }()

	if err := models.ValidateLookup(subjectDID, cid); err != nil {
		return false, s.reject(ctx, opValidity, err)
	}

	credential, err := s.find(ctx, models.KeyFor(subjectDID, cid))
	if err != nil {
		return false, s.reject(ctx, opValidity, err)
	}
	if credential == nil {
		s.metrics.IncValidityCheck(metrics.ResultMissing)
		span.SetAttributes(tracer.Bool(tracer.AttrFound, false), tracer.Bool(tracer.AttrValid, false))
		return false, nil
	}

	valid := credential.IsValidAt(s.now(ctx))
	if valid {
		s.metrics.IncValidityCheck(metrics.ResultValid)
	} else {
		s.metrics.IncValidityCheck(metrics.ResultInvalid)
	}
	span.SetAttributes(tracer.Bool(tracer.AttrFound, true), tracer.Bool(tracer.AttrValid, valid))
	return valid, nil
}

// GetCredential returns the stored credential, or nil if there is none.
// The view reports the revoked flag as stored and does not evaluate expiry.
func (s *Service) GetCredential(ctx context.Context, subjectDID, cid string) (_ *models.CredentialView, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialGet,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubject(subjectDID)),
	)
	defer func() { span.End(err) }()

	if err := models.ValidateLookup(subjectDID, cid); err != nil {
		return nil, s.reject(ctx, opGet, err)
	}

	credential, err := s.find(ctx, models.KeyFor(subjectDID, cid))
	if err != nil {
		return nil, s.reject(ctx, opGet, err)
	}
	span.SetAttributes(tracer.Bool(tracer.AttrFound, credential != nil))
	if credential == nil {
		return nil, nil
	}
	view := credential.ToView()
	span.SetAttributes(tracer.String(tracer.AttrCIDFormat, string(view.CIDFormat)))
	return view, nil
}

// find reads outside a transaction; a single-key read is atomic on every
// backend. Returns nil, nil when the key is absent.
func (s *Service) find(ctx context.Context, key models.Key) (*models.Credential, error) {
	var credential *models.Credential
	err := s.timed("find", func() (err error) {
		credential, err = s.store.FindByKey(ctx, key)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.translate(err)
	}
	return credential, nil
}

// translate maps store sentinels and infrastructure failures to domain errors.
// Domain errors pass through unchanged.
func (s *Service) translate(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	case errors.Is(err, store.ErrAlreadyExists):
		return dErrors.New(dErrors.CodeConflict, "credential already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "credential store timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential store failure")
	}
}

func (s *Service) reject(ctx context.Context, operation string, err error) error {
	code := dErrors.CodeOf(err)
	s.metrics.IncRejected(operation, string(code))

	args := []any{
		"operation", operation,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		s.logger.ErrorContext(ctx, "credential operation failed", args...)
	} else {
		s.logger.DebugContext(ctx, "credential operation rejected", args...)
	}
	return err
}

func (s *Service) timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveStoreOp(operation, time.Since(start).Seconds())
	return err
}

// publish is best effort. The transition is already committed, so a failed
// delivery is logged and counted but never returned.
func (s *Service) publish(ctx context.Context, eventType contract.EventType, credential models.Credential, actor id.CallerID, at models.Timestamp) {
	evt := events.New(eventType, credential, actor, at, requestcontext.RequestID(ctx))
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.metrics.IncEventPublished(string(eventType), "error")
		s.logger.ErrorContext(ctx, "failed to publish credential event",
			"event_type", string(eventType),
			"key", evt.Key,
			"error", err,
			"request_id", evt.RequestID,
		)
		return
	}
	s.metrics.IncEventPublished(string(eventType), "ok")
}
