package skill

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/model"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// Admitted is everything the executor needs to run one invocation: the
// validated request, the created record, and the resolved context and
// history.
type Admitted struct {
	User    *types.User
	Skill   Skill
	Request *types.InvocationRequest
	Result  *types.ActionResult
	Model   model.Info
	Tier    string
	Context types.SkillContext
	History []*types.ActionResult
}

// Admit runs the precheck pipeline: quota gate, model resolution, skill
// resolution, idempotency check, input defaulting, record creation,
// then context and history resolution. It either returns a fully
// prepared invocation with a durable executing record, or an error with
// no record created.
func (s *Service) Admit(ctx context.Context, user *types.User, req *types.InvocationRequest) (*Admitted, error) {
	if user == nil || user.UID == "" {
		return nil, types.NewError(types.ErrParams, "missing user").
			WithHTTPStatus(http.StatusBadRequest)
	}
	if req == nil {
		return nil, types.NewError(types.ErrParams, "missing request").
			WithHTTPStatus(http.StatusBadRequest)
	}

	// Quota runs first; the tier of an unregistered model name falls
	// back to the default tier so the gate never needs resolution.
	tier := s.registry.TierOf(req.ModelName)
	if !s.quota.Allow(ctx, user.UID, tier) {
		return nil, types.NewError(types.ErrQuotaExceeded, "invocation quota exceeded for tier "+tier).
			WithHTTPStatus(http.StatusTooManyRequests).WithRetryable(true)
	}

	// Model resolution.
	modelName := req.ModelName
	if modelName == "" {
		modelName = s.registry.Default()
	}
	info, ok := s.registry.Lookup(modelName)
	if !ok {
		return nil, types.NewError(types.ErrModelNotSupported, "model not supported: "+modelName).
			WithHTTPStatus(http.StatusBadRequest)
	}

	// Skill resolution; empty name selects the default routing skill.
	sk, err := s.inventory.Get(req.SkillName)
	if err != nil {
		return nil, err
	}

	// Idempotency: a caller-supplied result id must be unused.
	clientSuppliedID := req.ResultID != ""
	resultID := req.ResultID
	if clientSuppliedID {
		_, err := s.store.GetResult(ctx, user.UID, resultID)
		if err == nil {
			return nil, types.NewError(types.ErrDuplicateRequest, "result already exists: "+resultID).
				WithHTTPStatus(http.StatusConflict)
		}
		if err != store.ErrNotFound {
			return nil, types.NewError(types.ErrInternalError, "failed to check result id").
				WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
		}
	} else {
		resultID = uuid.New().String()
	}

	// Defaulting on a copy; the caller's request is never mutated.
	admittedReq := *req
	if admittedReq.Input == nil {
		admittedReq.Input = &types.SkillInput{Query: ""}
	}
	admittedReq.SkillName = sk.Name()
	admittedReq.ModelName = modelName
	admittedReq.ResultID = resultID

	inputJSON, err := json.Marshal(admittedReq.Input)
	if err != nil {
		return nil, types.NewError(types.ErrParams, "unserializable input").
			WithCause(err).WithHTTPStatus(http.StatusBadRequest)
	}

	res := &types.ActionResult{
		ResultID:  resultID,
		UID:       user.UID,
		CanvasID:  admittedReq.CanvasID,
		TriggerID: admittedReq.TriggerID,
		Type:      types.ResultTypeSkill,
		SkillName: sk.Name(),
		ModelName: modelName,
		Input:     string(inputJSON),
		Status:    types.StatusExecuting,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateResult(ctx, res); err != nil {
		if clientSuppliedID {
			// Lost the race against a concurrent request with the same id.
			return nil, types.NewError(types.ErrDuplicateRequest, "result already exists: "+resultID).
				WithCause(err).WithHTTPStatus(http.StatusConflict)
		}
		return nil, types.NewError(types.ErrInternalError, "failed to create result record").
			WithCause(err).WithHTTPStatus(http.StatusInternalServerError)
	}

	ad := &Admitted{
		User:    user,
		Skill:   sk,
		Request: &admittedReq,
		Result:  res,
		Model:   info,
		Tier:    tier,
	}
	s.resolve(ctx, ad)
	return ad, nil
}

// prepare rebuilds an Admitted for a record that already exists, used
// by workers consuming dispatched jobs. It re-runs resolution but none
// of the admission gates.
func (s *Service) prepare(ctx context.Context, user *types.User, req *types.InvocationRequest, res *types.ActionResult) (*Admitted, error) {
	sk, err := s.inventory.Get(res.SkillName)
	if err != nil {
		return nil, err
	}
	info, _ := s.registry.Lookup(res.ModelName)
	admittedReq := *req
	if admittedReq.Input == nil {
		admittedReq.Input = &types.SkillInput{Query: ""}
	}
	ad := &Admitted{
		User:    user,
		Skill:   sk,
		Request: &admittedReq,
		Result:  res,
		Model:   info,
		Tier:    s.registry.TierOf(res.ModelName),
	}
	s.resolve(ctx, ad)
	return ad, nil
}

// resolve fills in context and history, both best-effort: resolution
// failures degrade to the unresolved input rather than failing the
// invocation.
func (s *Service) resolve(ctx context.Context, ad *Admitted) {
	resolved, err := s.resolver.Resolve(ctx, ad.User.UID, ad.Request.Context)
	if err != nil {
		s.logger.Warn("context resolution failed",
			zap.String("result_id", ad.Result.ResultID), zap.Error(err))
		resolved = ad.Request.Context
	}
	ad.Context = resolved

	if len(ad.Request.ResultHistory) > 0 {
		history, err := s.store.GetResults(ctx, ad.User.UID, ad.Request.ResultHistory)
		if err != nil {
			s.logger.Warn("history resolution failed",
				zap.String("result_id", ad.Result.ResultID), zap.Error(err))
		} else {
			ad.History = history
		}
	}
}
