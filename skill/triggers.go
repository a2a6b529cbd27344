package skill

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// validateTrigger checks one trigger definition: the skill must be
// installed, timer triggers need a timer config with a valid repeat
// interval, simple-event triggers need an event name.
func (s *Service) validateTrigger(t *types.SkillTrigger) error {
	if _, err := s.inventory.Get(t.SkillName); err != nil {
		return err
	}
	switch t.Type {
	case types.TriggerTimer:
		if t.Timer == nil || t.Timer.Datetime.IsZero() {
			return types.NewError(types.ErrParams, "timer trigger requires timerConfig.datetime").
				WithHTTPStatus(http.StatusBadRequest)
		}
		if t.Timer.RepeatInterval != "" {
			if _, ok := t.Timer.RepeatInterval.Period(); !ok {
				return types.NewError(types.ErrParams, "unknown repeat interval: "+string(t.Timer.RepeatInterval)).
					WithHTTPStatus(http.StatusBadRequest)
			}
		}
	case types.TriggerSimpleEvent:
		if t.SimpleEventName == "" {
			return types.NewError(types.ErrParams, "simpleEvent trigger requires an event name").
				WithHTTPStatus(http.StatusBadRequest)
		}
	default:
		return types.NewError(types.ErrParams, "unknown trigger type: "+string(t.Type)).
			WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}

// CreateTriggers validates and persists a batch of triggers, then
// schedules the ones created enabled. Validation is all-or-nothing;
// nothing persists if any item is invalid.
func (s *Service) CreateTriggers(ctx context.Context, user *types.User, triggers []*types.SkillTrigger) ([]*types.SkillTrigger, error) {
	if len(triggers) == 0 {
		return nil, types.NewError(types.ErrParams, "no triggers given").
			WithHTTPStatus(http.StatusBadRequest)
	}
	for _, t := range triggers {
		if err := s.validateTrigger(t); err != nil {
			return nil, err
		}
	}
	for _, t := range triggers {
		t.TriggerID = uuid.New().String()
		t.UID = user.UID
		t.BoundJobID = ""
	}
	if err := s.store.CreateTriggers(ctx, triggers); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create triggers").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	for _, t := range triggers {
		if !t.Enabled {
			continue
		}
		if err := s.scheduler.Enable(ctx, user.UID, t.TriggerID); err != nil {
			return nil, err
		}
	}
	// Re-read so callers see the bound job ids.
	out := make([]*types.SkillTrigger, 0, len(triggers))
	for _, t := range triggers {
		got, err := s.GetTrigger(ctx, user, t.TriggerID)
		if err != nil {
			return nil, err
		}
		out = append(out, got)
	}
	return out, nil
}

// GetTrigger returns one trigger, scoped to its owner.
func (s *Service) GetTrigger(ctx context.Context, user *types.User, triggerID string) (*types.SkillTrigger, error) {
	t, err := s.store.GetTrigger(ctx, user.UID, triggerID)
	if err == store.ErrNotFound {
		return nil, types.NewError(types.ErrTriggerNotFound, "trigger not found: "+triggerID).
			WithHTTPStatus(http.StatusNotFound)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load trigger").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	return t, nil
}

// ListTriggers returns the user's triggers.
func (s *Service) ListTriggers(ctx context.Context, user *types.User, skillName string, page, pageSize int) ([]*types.SkillTrigger, error) {
	triggers, err := s.store.ListTriggers(ctx, user.UID, skillName, page, pageSize)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list triggers").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	return triggers, nil
}

// UpdateTrigger rewrites a trigger's definition. A bound trigger is
// unscheduled first so the new schedule takes effect, then re-enabled
// when the update asks for it.
func (s *Service) UpdateTrigger(ctx context.Context, user *types.User, t *types.SkillTrigger) (*types.SkillTrigger, error) {
	if err := s.validateTrigger(t); err != nil {
		return nil, err
	}
	existing, err := s.GetTrigger(ctx, user, t.TriggerID)
	if err != nil {
		return nil, err
	}
	if existing.BoundJobID != "" {
		if err := s.scheduler.Disable(ctx, user.UID, t.TriggerID); err != nil {
			return nil, err
		}
	}
	t.UID = user.UID
	wantEnabled := t.Enabled
	t.Enabled = false
	if err := s.store.UpdateTrigger(ctx, t); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to update trigger").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	if wantEnabled {
		if err := s.scheduler.Enable(ctx, user.UID, t.TriggerID); err != nil {
			return nil, err
		}
	}
	return s.GetTrigger(ctx, user, t.TriggerID)
}

// DeleteTrigger force-unschedules a trigger, then removes it.
func (s *Service) DeleteTrigger(ctx context.Context, user *types.User, triggerID string) error {
	if err := s.scheduler.Disable(ctx, user.UID, triggerID); err != nil {
		return err
	}
	if err := s.store.DeleteTrigger(ctx, user.UID, triggerID); err != nil {
		return types.NewError(types.ErrInternalError, "failed to delete trigger").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}
	return nil
}
