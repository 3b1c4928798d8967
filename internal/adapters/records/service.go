// Package records exposes the generic per-resource client: every portal
// resource (clients, invoices, users) gets one Service instance that
// speaks the shared REST contract through the portal transport.
package records

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/enlacemx/recordkit/internal/adapters/outbound/portal"
	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/internal/ports"
	"github.com/enlacemx/recordkit/pkg/logger"
)

const defaultCacheTTL = 2 * time.Minute

// Service is a resource-scoped record client. Declared columns bound the
// projections callers may request; everything else is shared plumbing.
type Service struct {
	client   *portal.Client
	resource string
	columns  []string
	cache    ports.ResponseCache
	cacheTTL time.Duration
	notifier ports.Notifier
	logger   logger.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithCache enables the read-through response cache. A zero ttl keeps
// the default of two minutes.
func WithCache(cache ports.ResponseCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithNotifier wires the toast surface for successful mutations.
func WithNotifier(notifier ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(client *portal.Client, resource string, columns []string, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		client:   client,
		resource: resource,
		columns:  columns,
		cacheTTL: defaultCacheTTL,
		logger:   log.WithComponent("records-" + resource),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Resource returns the portal path segment this service is bound to.
func (s *Service) Resource() string {
	return s.resource
}

// Columns returns the declared column set.
func (s *Service) Columns() []string {
	return s.columns
}

func (s *Service) itemPath(id int64) string {
	return s.resource + "/" + strconv.FormatInt(id, 10)
}

func (s *Service) cacheKey(params url.Values) string {
	digest := xxhash.Sum64String(params.Encode())

	return s.resource + ":" + strconv.FormatUint(digest, 36)
}

func (s *Service) cachedEnvelope(ctx context.Context, key string) (*model.Envelope, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")

		return nil, false
	}

	if !ok {
		return nil, false
	}

	var envelope model.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false
	}

	return &envelope, true
}

func (s *Service) storeEnvelope(ctx context.Context, key string, envelope *model.Envelope) {
	if s.cache == nil || !envelope.Status {
		return
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// invalidate drops every cached page for this resource. Called after any
// confirmed mutation.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Clear(ctx, s.resource+":"); err != nil {
		s.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func (s *Service) toast(message string) {
	if s.notifier != nil && message != "" {
		s.notifier.Toast(message)
	}
}

// decodeList turns an envelope into a typed list response. Data is never
// nil: empty or missing payloads decode to an empty slice.
func (s *Service) decodeList(envelope *model.Envelope) model.Response[[]*model.Record] {
	resp := model.Response[[]*model.Record]{
		Status:     envelope.Status,
		Data:       []*model.Record{},
		Message:    envelope.Message,
		Page:       envelope.Page,
		PerPage:    envelope.PerPage,
		TotalPages: envelope.TotalPages,
		TotalItems: envelope.TotalItems,
	}

	if len(envelope.Data) == 0 {
		return resp
	}

	var many []*model.Record
	if err := json.Unmarshal(envelope.Data, &many); err == nil {
		resp.Data = many

		return resp
	}

	// some endpoints answer a bare object for single-row results
	var one model.Record
	if err := json.Unmarshal(envelope.Data, &one); err == nil {
		resp.Data = []*model.Record{&one}
	}

	return resp
}

// decodeOne is the single-record counterpart; an array payload yields its
// first element.
func (s *Service) decodeOne(envelope *model.Envelope) model.Response[*model.Record] {
	resp := model.Response[*model.Record]{
		Status:  envelope.Status,
		Message: envelope.Message,
	}

	if len(envelope.Data) == 0 {
		return resp
	}

	var one model.Record
	if err := json.Unmarshal(envelope.Data, &one); err == nil {
		resp.Data = &one

		return resp
	}

	var many []*model.Record
	if err := json.Unmarshal(envelope.Data, &many); err == nil && len(many) > 0 {
		resp.Data = many[0]
	}

	return resp
}
