package records

import (
	"context"

	"github.com/enlacemx/recordkit/internal/adapters/outbound/portal"
	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/internal/query"
)

const (
	defaultPerPage   = 999
	unboundedPerPage = 999999
)

// Get lists records with pagination metadata preserved. Callers that did
// not pick a page get page=1, per_page=999. Successful pages are served
// from and written to the response cache.
func (s *Service) Get(ctx context.Context, opts query.Options) (model.Response[[]*model.Record], error) {
	if opts.Paginator == nil {
		opts.Paginator = &model.Paginator{Page: 1, PerPage: defaultPerPage}
	}

	params, err := opts.Normalize(s.columns)
	if err != nil {
		return model.Failure[[]*model.Record](err.Error()), err
	}

	key := s.cacheKey(params)
	if envelope, ok := s.cachedEnvelope(ctx, key); ok {
		s.logger.Debug().Str("key", key).Msg("serving list from cache")

		return s.decodeList(envelope), nil
	}

	envelope := s.client.Get(ctx, s.resource, params, opts.LoaderOr(true))
	s.storeEnvelope(ctx, key, envelope)

	return s.decodeList(envelope), nil
}

// All fetches everything: the paginator is forced to one unbounded page.
// The result's Data is never nil.
func (s *Service) All(ctx context.Context, opts query.Options) ([]*model.Record, error) {
	opts.Paginator = &model.Paginator{Page: 1, PerPage: unboundedPerPage}

	resp, err := s.Get(ctx, opts)
	if err != nil {
		return []*model.Record{}, err
	}

	return resp.Data, nil
}

// Find fetches one record by id. A miss is deliberately silent: no
// dialog fires and the zero response simply reports Status false.
func (s *Service) Find(ctx context.Context, id int64, opts query.Options) (model.Response[*model.Record], error) {
	params, err := opts.Normalize(s.columns)
	if err != nil {
		return model.Failure[*model.Record](err.Error()), err
	}

	envelope := s.client.Get(portal.WithQuiet(ctx), s.itemPath(id), params, opts.LoaderOr(true))

	return s.decodeOne(envelope), nil
}

// First returns the first record of the page Get would return.
func (s *Service) First(ctx context.Context, opts query.Options) (*model.Record, error) {
	resp, err := s.Get(ctx, opts)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}

	return resp.Data[0], nil
}

// Last returns the last record of the page Get would return.
func (s *Service) Last(ctx context.Context, opts query.Options) (*model.Record, error) {
	resp, err := s.Get(ctx, opts)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}

	return resp.Data[len(resp.Data)-1], nil
}
