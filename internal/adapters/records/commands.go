package records

import (
	"context"
	"fmt"

	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/internal/query"
)

// UpdateParams names every piece of an update explicitly. The id may live
// either here or inside Data; it must exist in one of the two.
type UpdateParams struct {
	ID     int64
	Data   *model.Record
	Loader *bool
	Extra  map[string]any
}

func (p UpdateParams) resolveID() (int64, error) {
	if p.ID > 0 {
		return p.ID, nil
	}

	if p.Data != nil {
		if id, ok := p.Data.ID(); ok {
			return id, nil
		}
	}

	return 0, model.ErrMissingIdentifier
}

func (p UpdateParams) loaderOr(def bool) bool {
	if p.Loader != nil {
		return *p.Loader
	}

	return def
}

// New creates a record. The payload union decides the encoding: plain
// records post as JSON under "data", file payloads post as multipart.
func (s *Service) New(ctx context.Context, payload model.Payload, opts query.Options) (model.Response[*model.Record], error) {
	loader := opts.LoaderOr(true)

	var envelope *model.Envelope

	switch p := payload.(type) {
	case model.PlainPayload:
		body := map[string]any{"data": p.Data}
		for key, value := range opts.ExtraData {
			body[key] = value
		}

		envelope = s.client.Post(ctx, s.resource, body, loader)

	case model.FilePayload:
		extra := make(map[string]string, len(opts.ExtraData))
		for key, value := range opts.ExtraData {
			extra[key] = fmt.Sprint(value)
		}

		envelope = s.client.PostMultipart(ctx, s.resource, p, extra, loader)

	default:
		err := fmt.Errorf("unsupported payload type %T", payload)

		return model.Failure[*model.Record](err.Error()), err
	}

	if envelope.Status {
		s.invalidate(ctx)
		s.toast(envelope.Message)
	}

	return s.decodeOne(envelope), nil
}

// Update issues a PUT against the record's id, failing fast before any
// network activity when no id can be resolved.
func (s *Service) Update(ctx context.Context, params UpdateParams) (model.Response[*model.Record], error) {
	id, err := params.resolveID()
	if err != nil {
		return model.Failure[*model.Record](err.Error()), err
	}

	body := map[string]any{"data": params.Data}
	for key, value := range params.Extra {
		body[key] = value
	}

	envelope := s.client.Put(ctx, s.itemPath(id), body, params.loaderOr(true))

	if envelope.Status {
		s.invalidate(ctx)
		s.toast(envelope.Message)
	}

	return s.decodeOne(envelope), nil
}

// FastUpdate is the fire-and-forget variant: no loading indicator, and on
// a confirmed success the patch is merged into target so the caller's
// in-memory copy matches the server. On failure target stays untouched.
func (s *Service) FastUpdate(ctx context.Context, target, patch *model.Record) (bool, error) {
	if target == nil {
		return false, model.ErrMissingIdentifier
	}

	id, ok := target.ID()
	if !ok {
		if id, ok = patch.ID(); !ok {
			return false, model.ErrMissingIdentifier
		}
	}

	loader := false
	resp, err := s.Update(ctx, UpdateParams{ID: id, Data: patch, Loader: &loader})
	if err != nil {
		return false, err
	}

	if resp.Status {
		target.Merge(patch)
	}

	return resp.Status, nil
}

// Switch toggles the record's soft-delete state and, on success, flips
// the caller's deleted_at locally without a re-fetch.
func (s *Service) Switch(ctx context.Context, record *model.Record, loader bool) (bool, error) {
	if record == nil {
		return false, model.ErrMissingIdentifier
	}

	id, ok := record.ID()
	if !ok {
		return false, model.ErrMissingIdentifier
	}

	toggled, err := s.SwitchByID(ctx, id, loader)
	if err != nil {
		return false, err
	}

	if toggled {
		record.ToggleDeleted(s.now())
	}

	return toggled, nil
}

// SwitchByID toggles by id alone.
func (s *Service) SwitchByID(ctx context.Context, id int64, loader bool) (bool, error) {
	if id <= 0 {
		return false, model.ErrMissingIdentifier
	}

	envelope := s.client.Delete(ctx, s.itemPath(id), loader)

	if envelope.Status {
		s.invalidate(ctx)
		s.toast(envelope.Message)
	}

	return envelope.Status, nil
}

// MultipleNews creates records in bulk with a single POST.
func (s *Service) MultipleNews(ctx context.Context, recs []*model.Record, loader bool) (bool, error) {
	if len(recs) == 0 {
		return true, nil
	}

	envelope := s.client.Post(ctx, s.resource, map[string]any{"data": recs}, loader)

	if envelope.Status {
		s.invalidate(ctx)
		s.toast(envelope.Message)
	}

	return envelope.Status, nil
}

// MultipleUpdate updates records in bulk with a single PUT to /multiple.
// Every record must carry its own id.
func (s *Service) MultipleUpdate(ctx context.Context, recs []*model.Record, loader bool) (bool, error) {
	if len(recs) == 0 {
		return true, nil
	}

	for _, rec := range recs {
		if _, ok := rec.ID(); !ok {
			return false, model.ErrMissingIdentifier
		}
	}

	envelope := s.client.Put(ctx, s.resource+"/multiple", map[string]any{"data": recs}, loader)

	if envelope.Status {
		s.invalidate(ctx)
		s.toast(envelope.Message)
	}

	return envelope.Status, nil
}
