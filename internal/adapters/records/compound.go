package records

import (
	"context"

	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/internal/query"
)

// FindOrCreate looks a record up by the equality of data's fields and
// creates it when nothing matches.
func (s *Service) FindOrCreate(ctx context.Context, data *model.Record) (*model.Record, error) {
	if data == nil || data.Len() == 0 {
		return nil, model.ErrInvalidArgumentCombination
	}

	existing, err := s.First(ctx, query.Options{Where: data})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	resp, err := s.New(ctx, model.PlainPayload{Data: data}, query.Options{})
	if err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// CreateOrRestore looks a record up including soft-deleted rows: a
// deleted match is toggled back to life, a live match is returned as-is,
// and no match at all becomes a create.
func (s *Service) CreateOrRestore(ctx context.Context, data *model.Record) (*model.Record, error) {
	if data == nil || data.Len() == 0 {
		return nil, model.ErrInvalidArgumentCombination
	}

	// Explicit conditions suppress the deleted_at IS NULL default, so
	// this search sees soft-deleted rows too.
	existing, err := s.First(ctx, query.Options{Where: data})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.IsDeleted() {
			if _, err := s.Switch(ctx, existing, false); err != nil {
				return nil, err
			}
		}

		return existing, nil
	}

	resp, err := s.New(ctx, model.PlainPayload{Data: data}, query.Options{})
	if err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// CreateOrUpdate decides by the id field alone: a positive numeric id
// means update, anything else means create. No existence check runs
// against the server.
func (s *Service) CreateOrUpdate(ctx context.Context, data *model.Record) (model.Response[*model.Record], error) {
	if data == nil {
		return model.Failure[*model.Record](model.ErrInvalidArgumentCombination.Error()), model.ErrInvalidArgumentCombination
	}

	if id, ok := data.ID(); ok {
		return s.Update(ctx, UpdateParams{ID: id, Data: data})
	}

	return s.New(ctx, model.PlainPayload{Data: data}, query.Options{})
}
