package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/api"
	"github.com/BaSui01/skillstream/skill"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// =============================================================================
// ⏰ 触发器 Handler
// =============================================================================

// TriggerHandler 触发器处理器
type TriggerHandler struct {
	svc    *skill.Service
	store  *store.Store
	logger *zap.Logger
}

// NewTriggerHandler 创建触发器处理器
func NewTriggerHandler(svc *skill.Service, st *store.Store, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{svc: svc, store: st, logger: logger}
}

func (h *TriggerHandler) currentUser(w http.ResponseWriter, r *http.Request) *types.User {
	return resolveUser(w, r, h.store, h.logger)
}

// HandleCreate 批量创建触发器
// @Router /v1/skill/triggers [post]
func (h *TriggerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req api.CreateTriggersRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	triggers := make([]*types.SkillTrigger, 0, len(req.Triggers))
	for i := range req.Triggers {
		triggers = append(triggers, req.Triggers[i].ToTrigger())
	}

	created, err := h.svc.CreateTriggers(r.Context(), user, triggers)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, created)
}

// HandleList 查询触发器列表
// @Router /v1/skill/triggers [get]
func (h *TriggerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	q := r.URL.Query()
	triggers, err := h.svc.ListTriggers(r.Context(), user, q.Get("skillName"),
		parseIntDefault(q.Get("page"), 1), parseIntDefault(q.Get("pageSize"), 10))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, triggers)
}

// HandleUpdate 更新触发器
// @Router /v1/skill/triggers [put]
func (h *TriggerHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req api.UpdateTriggerRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.TriggerID == "" {
		WriteError(w, types.NewError(types.ErrParams, "triggerId is required"), h.logger)
		return
	}

	trigger := req.ToTrigger()
	trigger.TriggerID = req.TriggerID
	updated, err := h.svc.UpdateTrigger(r.Context(), user, trigger)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, updated)
}

// HandleDelete 删除触发器（先强制取消调度）
// @Router /v1/skill/triggers/{triggerId} [delete]
func (h *TriggerHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	triggerID := r.PathValue("triggerId")
	if err := h.svc.DeleteTrigger(r.Context(), user, triggerID); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"triggerId": triggerID})
}

// HandleEnable 启用触发器
// @Router /v1/skill/triggers/{triggerId}/enable [post]
func (h *TriggerHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	triggerID := r.PathValue("triggerId")
	if err := h.svc.Scheduler().Enable(r.Context(), user.UID, triggerID); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	trigger, err := h.svc.GetTrigger(r.Context(), user, triggerID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, trigger)
}

// HandleDisable 停用触发器
// @Router /v1/skill/triggers/{triggerId}/disable [post]
func (h *TriggerHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	triggerID := r.PathValue("triggerId")
	if err := h.svc.Scheduler().Disable(r.Context(), user.UID, triggerID); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	trigger, err := h.svc.GetTrigger(r.Context(), user, triggerID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, trigger)
}
