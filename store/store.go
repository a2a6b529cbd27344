// Package store provides the gorm-backed record store the engine reads
// and writes: action results, triggers, users, context records, and the
// usage ledger. All operations are scoped by owner uid and exclude
// soft-deleted rows.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/skillstream/types"
)

// ErrNotFound is returned when a uid-scoped lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store wraps the database handle.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New migrates the schema and returns a store.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(
		&UserPO{},
		&ResourcePO{},
		&DocumentPO{},
		&ActionResultPO{},
		&SkillTriggerPO{},
		&UsageRecordPO{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// DB exposes the underlying handle for callers that need transactions.
func (s *Store) DB() *gorm.DB { return s.db }

// =============================================================================
// Users
// =============================================================================

// GetUser returns the user with the given uid.
func (s *Store) GetUser(ctx context.Context, uid string) (*types.User, error) {
	var po UserPO
	err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &types.User{UID: po.UID, Name: po.Name, Locale: po.Locale}, nil
}

// CreateUser inserts a user row.
func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	return s.db.WithContext(ctx).Create(&UserPO{UID: u.UID, Name: u.Name, Locale: u.Locale}).Error
}

// =============================================================================
// Context records (resources and documents)
// =============================================================================

// GetResource returns one resource as a context reference.
func (s *Store) GetResource(ctx context.Context, uid, id string) (*types.ContextReference, error) {
	var po ResourcePO
	err := s.db.WithContext(ctx).Where("resource_id = ? AND uid = ?", id, uid).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &types.ContextReference{ID: po.ResourceID, Title: po.Title, Content: po.Content, URL: po.URL}, nil
}

// GetDocument returns one document as a context reference.
func (s *Store) GetDocument(ctx context.Context, uid, id string) (*types.ContextReference, error) {
	var po DocumentPO
	err := s.db.WithContext(ctx).Where("document_id = ? AND uid = ?", id, uid).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &types.ContextReference{ID: po.DocumentID, Title: po.Title, Content: po.Content}, nil
}

// CreateResource inserts a resource row.
func (s *Store) CreateResource(ctx context.Context, uid string, ref *types.ContextReference) error {
	return s.db.WithContext(ctx).Create(&ResourcePO{
		ResourceID: ref.ID, UID: uid, Title: ref.Title, Content: ref.Content, URL: ref.URL,
	}).Error
}

// CreateDocument inserts a document row.
func (s *Store) CreateDocument(ctx context.Context, uid string, ref *types.ContextReference) error {
	return s.db.WithContext(ctx).Create(&DocumentPO{
		DocumentID: ref.ID, UID: uid, Title: ref.Title, Content: ref.Content,
	}).Error
}

// =============================================================================
// Action results
// =============================================================================

// ResultFilter narrows ListResults.
type ResultFilter struct {
	SkillName string
	CanvasID  string
	Status    types.ResultStatus
	Page      int
	PageSize  int
}

// CreateResult persists a freshly admitted record.
func (s *Store) CreateResult(ctx context.Context, res *types.ActionResult) error {
	po, err := resultDO2PO(res)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(po).Error
}

// GetResult returns one record by id, scoped to the owner.
func (s *Store) GetResult(ctx context.Context, uid, resultID string) (*types.ActionResult, error) {
	var po ActionResultPO
	err := s.db.WithContext(ctx).Where("result_id = ? AND uid = ?", resultID, uid).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return resultPO2DO(&po)
}

// GetResults fetches records by id, ordered by creation time ascending.
// Missing ids are dropped, not errors; history resolution is best-effort.
func (s *Store) GetResults(ctx context.Context, uid string, ids []string) ([]*types.ActionResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var pos []ActionResultPO
	err := s.db.WithContext(ctx).
		Where("uid = ? AND result_id IN ?", uid, ids).
		Order("created_at ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.ActionResult, 0, len(pos))
	for i := range pos {
		do, err := resultPO2DO(&pos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, do)
	}
	return out, nil
}

// ListResults returns records matching the filter, newest first.
func (s *Store) ListResults(ctx context.Context, uid string, f ResultFilter) ([]*types.ActionResult, error) {
	q := s.db.WithContext(ctx).Where("uid = ?", uid)
	if f.SkillName != "" {
		q = q.Where("skill_name = ?", f.SkillName)
	}
	if f.CanvasID != "" {
		q = q.Where("canvas_id = ?", f.CanvasID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	page, pageSize := f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	var pos []ActionResultPO
	err := q.Order("updated_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.ActionResult, 0, len(pos))
	for i := range pos {
		do, err := resultPO2DO(&pos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, do)
	}
	return out, nil
}

// CommitResult writes the terminal state of a record in one update, so
// readers polling mid-flight only ever see the last committed snapshot.
func (s *Store) CommitResult(ctx context.Context, res *types.ActionResult) error {
	po, err := resultDO2PO(res)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&ActionResultPO{}).
		Where("result_id = ? AND uid = ?", res.ResultID, res.UID).
		Updates(map[string]any{
			"status":          po.Status,
			"content":         po.Content,
			"logs":            po.Logs,
			"structured_data": po.StructuredData,
			"errors":          po.Errors,
			"tool_calls":      po.ToolCalls,
			"token_usage":     po.TokenUsage,
		}).Error
}

// =============================================================================
// Triggers
// =============================================================================

// CreateTriggers inserts a batch of triggers.
func (s *Store) CreateTriggers(ctx context.Context, triggers []*types.SkillTrigger) error {
	if len(triggers) == 0 {
		return nil
	}
	pos := make([]SkillTriggerPO, 0, len(triggers))
	for _, t := range triggers {
		po, err := triggerDO2PO(t)
		if err != nil {
			return err
		}
		pos = append(pos, *po)
	}
	return s.db.WithContext(ctx).Create(&pos).Error
}

// GetTrigger returns one trigger by id, scoped to the owner.
func (s *Store) GetTrigger(ctx context.Context, uid, triggerID string) (*types.SkillTrigger, error) {
	var po SkillTriggerPO
	err := s.db.WithContext(ctx).Where("trigger_id = ? AND uid = ?", triggerID, uid).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return triggerPO2DO(&po)
}

// ListTriggers returns the user's triggers, optionally by skill.
func (s *Store) ListTriggers(ctx context.Context, uid, skillName string, page, pageSize int) ([]*types.SkillTrigger, error) {
	q := s.db.WithContext(ctx).Where("uid = ?", uid)
	if skillName != "" {
		q = q.Where("skill_name = ?", skillName)
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	var pos []SkillTriggerPO
	err := q.Order("updated_at DESC").Limit(pageSize).Offset((page - 1) * pageSize).Find(&pos).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.SkillTrigger, 0, len(pos))
	for i := range pos {
		do, err := triggerPO2DO(&pos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, do)
	}
	return out, nil
}

// GetTriggersByIDs batch-fetches triggers by id for joining onto result
// listings. Missing ids are dropped.
func (s *Store) GetTriggersByIDs(ctx context.Context, uid string, ids []string) (map[string]*types.SkillTrigger, error) {
	if len(ids) == 0 {
		return map[string]*types.SkillTrigger{}, nil
	}
	var pos []SkillTriggerPO
	err := s.db.WithContext(ctx).Where("uid = ? AND trigger_id IN ?", uid, ids).Find(&pos).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]*types.SkillTrigger, len(pos))
	for i := range pos {
		do, err := triggerPO2DO(&pos[i])
		if err != nil {
			return nil, err
		}
		out[do.TriggerID] = do
	}
	return out, nil
}

// UpdateTrigger writes the mutable trigger fields.
func (s *Store) UpdateTrigger(ctx context.Context, t *types.SkillTrigger) error {
	po, err := triggerDO2PO(t)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&SkillTriggerPO{}).
		Where("trigger_id = ? AND uid = ?", t.TriggerID, t.UID).
		Updates(map[string]any{
			"type":              po.Type,
			"simple_event_name": po.SimpleEventName,
			"timer_datetime":    po.TimerDatetime,
			"repeat_interval":   po.RepeatInterval,
			"input":             po.Input,
			"context":           po.Context,
			"config":            po.Config,
			"enabled":           po.Enabled,
		}).Error
}

// BindTriggerJob records (or clears) the queue job scheduled for a
// trigger, together with the enabled flag, in one update so the
// bound-job invariant moves in lockstep.
func (s *Store) BindTriggerJob(ctx context.Context, uid, triggerID, jobID string, enabled bool) error {
	return s.db.WithContext(ctx).
		Model(&SkillTriggerPO{}).
		Where("trigger_id = ? AND uid = ?", triggerID, uid).
		Updates(map[string]any{"bound_job_id": jobID, "enabled": enabled}).Error
}

// DeleteTrigger soft-deletes a trigger.
func (s *Store) DeleteTrigger(ctx context.Context, uid, triggerID string) error {
	return s.db.WithContext(ctx).
		Where("trigger_id = ? AND uid = ?", triggerID, uid).
		Delete(&SkillTriggerPO{}).Error
}

// =============================================================================
// Usage ledger
// =============================================================================

// CreateUsageRecords appends rows to the usage accounting ledger.
func (s *Store) CreateUsageRecords(ctx context.Context, jobs []*types.UsageReportJob) error {
	if len(jobs) == 0 {
		return nil
	}
	pos := make([]UsageRecordPO, 0, len(jobs))
	for _, j := range jobs {
		pos = append(pos, UsageRecordPO{
			UID:          j.UID,
			ResultID:     j.ResultID,
			SkillName:    j.Meta.SkillName,
			Tier:         j.Item.Tier,
			Provider:     j.Item.Provider,
			ModelName:    j.Item.ModelName,
			InputTokens:  j.Item.InputTokens,
			OutputTokens: j.Item.OutputTokens,
			Timestamp:    j.Timestamp,
		})
	}
	return s.db.WithContext(ctx).Create(&pos).Error
}

// =============================================================================
// Converters
// =============================================================================

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal field: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(data string, dst any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), dst)
}

func resultDO2PO(res *types.ActionResult) (*ActionResultPO, error) {
	logs, err := marshalJSON(res.Logs)
	if err != nil {
		return nil, err
	}
	structured, err := marshalJSON(res.StructuredData)
	if err != nil {
		return nil, err
	}
	errs, err := marshalJSON(res.Errors)
	if err != nil {
		return nil, err
	}
	toolCalls, err := marshalJSON(res.ToolCalls)
	if err != nil {
		return nil, err
	}
	usage, err := marshalJSON(res.TokenUsage)
	if err != nil {
		return nil, err
	}
	return &ActionResultPO{
		ResultID:       res.ResultID,
		UID:            res.UID,
		CanvasID:       res.CanvasID,
		TriggerID:      res.TriggerID,
		Type:           string(res.Type),
		SkillName:      res.SkillName,
		ModelName:      res.ModelName,
		Input:          res.Input,
		Status:         string(res.Status),
		Content:        res.Content,
		Logs:           logs,
		StructuredData: structured,
		Errors:         errs,
		ToolCalls:      toolCalls,
		TokenUsage:     usage,
	}, nil
}

func resultPO2DO(po *ActionResultPO) (*types.ActionResult, error) {
	res := &types.ActionResult{
		ResultID:  po.ResultID,
		UID:       po.UID,
		CanvasID:  po.CanvasID,
		TriggerID: po.TriggerID,
		Type:      types.ResultType(po.Type),
		SkillName: po.SkillName,
		ModelName: po.ModelName,
		Input:     po.Input,
		Status:    types.ResultStatus(po.Status),
		Content:   po.Content,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}
	if err := unmarshalJSON(po.Logs, &res.Logs); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(po.StructuredData, &res.StructuredData); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(po.Errors, &res.Errors); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(po.ToolCalls, &res.ToolCalls); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(po.TokenUsage, &res.TokenUsage); err != nil {
		return nil, err
	}
	return res, nil
}

func triggerDO2PO(t *types.SkillTrigger) (*SkillTriggerPO, error) {
	input, err := marshalJSON(t.Input)
	if err != nil {
		return nil, err
	}
	if t.Input == nil {
		input = ""
	}
	sctx, err := marshalJSON(t.Context)
	if err != nil {
		return nil, err
	}
	cfg, err := marshalJSON(t.Config)
	if err != nil {
		return nil, err
	}
	po := &SkillTriggerPO{
		TriggerID:       t.TriggerID,
		UID:             t.UID,
		SkillName:       t.SkillName,
		Type:            string(t.Type),
		SimpleEventName: t.SimpleEventName,
		Input:           input,
		Context:         sctx,
		Config:          cfg,
		Enabled:         t.Enabled,
		BoundJobID:      t.BoundJobID,
	}
	if t.Timer != nil {
		dt := t.Timer.Datetime
		po.TimerDatetime = &dt
		po.RepeatInterval = string(t.Timer.RepeatInterval)
	}
	return po, nil
}

func triggerPO2DO(po *SkillTriggerPO) (*types.SkillTrigger, error) {
	t := &types.SkillTrigger{
		TriggerID:       po.TriggerID,
		UID:             po.UID,
		SkillName:       po.SkillName,
		Type:            types.TriggerType(po.Type),
		SimpleEventName: po.SimpleEventName,
		Enabled:         po.Enabled,
		BoundJobID:      po.BoundJobID,
		CreatedAt:       po.CreatedAt,
		UpdatedAt:       po.UpdatedAt,
	}
	if po.TimerDatetime != nil {
		t.Timer = &types.TimerConfig{
			Datetime:       *po.TimerDatetime,
			RepeatInterval: types.RepeatInterval(po.RepeatInterval),
		}
	}
	if err := unmarshalJSON(po.Input, &t.Input); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(po.Context, &t.Context); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(po.Config, &t.Config); err != nil {
		return nil, err
	}
	return t, nil
}
