package presentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pipprompter/server/internal/domain"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrMalformedRequest = errors.New("malformed request")

type iStateRepo interface {
	Get() domain.PresentationState
	Merge(domain.Patch) (domain.PresentationState, []domain.FieldError)
}

type service struct {
	stateRepo iStateRepo
	logger    *slog.Logger
}

func NewService(stateRepo iStateRepo, logger *slog.Logger) *service {
	return &service{
		stateRepo: stateRepo,
		logger:    logger,
	}
}

func (s service) GetState(_ context.Context) domain.PresentationState {
	return s.stateRepo.Get()
}

type UpdateParams struct {
	Body json.RawMessage
}

type UpdateResponse struct {
	State    domain.PresentationState `json:"state"`
	Rejected []domain.FieldError      `json:"rejected"`
}

// Update parses a partial state, drops fields that fail validation and
// merges the rest in one atomic step. Nothing is merged when the body is not
// a JSON object.
func (s service) Update(ctx context.Context, params *UpdateParams) (UpdateResponse, error) {
	var fields map[string]json.RawMessage
	body := bytes.TrimSpace(params.Body)
	if len(body) == 0 || body[0] != '{' {
		return UpdateResponse{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedRequest)
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return UpdateResponse{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	patch, rejected := s.buildPatch(ctx, fields)

	state, mergeRejected := s.stateRepo.Merge(patch)
	rejected = append(rejected, mergeRejected...)
	if len(rejected) > 0 {
		s.logger.InfoContext(ctx, "update fields rejected", "rejected", rejected)
	}

	return UpdateResponse{
		State:    state,
		Rejected: rejected,
	}, nil
}

func (s service) buildPatch(ctx context.Context, fields map[string]json.RawMessage) (domain.Patch, []domain.FieldError) {
	keys := maps.Keys(fields)
	slices.Sort(keys)

	patch := make(domain.Patch, len(fields))
	var rejected []domain.FieldError
	for _, key := range keys {
		raw := fields[key]
		wf, ok := wireFields[key]
		if !ok {
			s.logger.DebugContext(ctx, "ignoring unknown field", "field", key)
			continue
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}

		v, err := wf.decode(raw)
		if err != nil {
			rejected = append(rejected, toFieldError(wf.field, err))
			continue
		}

		patch[wf.field] = v
	}

	return patch, rejected
}
