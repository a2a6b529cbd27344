package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/api"
	"github.com/BaSui01/skillstream/internal/sse"
	"github.com/BaSui01/skillstream/skill"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

// =============================================================================
// 🚀 技能调用 Handler
// =============================================================================

// SkillHandler 技能调用处理器
type SkillHandler struct {
	svc    *skill.Service
	store  *store.Store
	logger *zap.Logger
}

// NewSkillHandler 创建技能调用处理器
func NewSkillHandler(svc *skill.Service, st *store.Store, logger *zap.Logger) *SkillHandler {
	return &SkillHandler{svc: svc, store: st, logger: logger}
}

// currentUser 从 X-User-ID 请求头解析调用者
func (h *SkillHandler) currentUser(w http.ResponseWriter, r *http.Request) *types.User {
	return resolveUser(w, r, h.store, h.logger)
}

func resolveUser(w http.ResponseWriter, r *http.Request, st *store.Store, logger *zap.Logger) *types.User {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		WriteError(w, types.NewError(types.ErrParams, "missing X-User-ID header"), logger)
		return nil
	}
	user, err := st.GetUser(r.Context(), uid)
	if err == store.ErrNotFound {
		WriteError(w, types.NewError(types.ErrUserNotFound, "unknown user: "+uid), logger)
		return nil
	}
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to load user").WithCause(err), logger)
		return nil
	}
	return user
}

// HandleInvoke 处理异步调用请求
// @Router /v1/skill/invoke [post]
func (h *SkillHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req api.InvokeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	res, err := h.svc.Invoke(r.Context(), user, &req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.InvokeResponse{ResultID: res.ResultID, Status: res.Status})
}

// HandleStreamInvoke 处理流式调用请求（SSE）
// @Router /v1/skill/streamInvoke [post]
func (h *SkillHandler) HandleStreamInvoke(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req api.InvokeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	// 帧头在第一帧时才写出，准入失败仍可返回 JSON 错误
	if err := h.svc.StreamInvoke(r.Context(), user, &req, writer); err != nil {
		if !writer.Started() {
			WriteError(w, err, h.logger)
		} else {
			h.logger.Error("stream invoke failed mid-stream", zap.Error(err))
		}
		return
	}
}

// HandleGetResult 查询单条结果
// @Router /v1/skill/results/{resultId} [get]
func (h *SkillHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	resultID := r.PathValue("resultId")
	res, err := h.svc.GetResult(r.Context(), user, resultID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// HandleListResults 查询结果列表
// @Router /v1/skill/results [get]
func (h *SkillHandler) HandleListResults(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	q := r.URL.Query()
	filter := store.ResultFilter{
		SkillName: q.Get("skillName"),
		CanvasID:  q.Get("canvasId"),
		Status:    types.ResultStatus(q.Get("status")),
		Page:      parseIntDefault(q.Get("page"), 1),
		PageSize:  parseIntDefault(q.Get("pageSize"), 10),
	}

	results, err := h.svc.ListResults(r.Context(), user, filter)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, results)
}

// HandleListSkills 查询已安装技能
// @Router /v1/skill/list [get]
func (h *SkillHandler) HandleListSkills(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.svc.ListSkills())
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
