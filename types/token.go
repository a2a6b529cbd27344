package types

import "time"

// TokenUsageItem records the token consumption of one model response.
type TokenUsageItem struct {
	Tier         string `json:"tier,omitempty"`
	Provider     string `json:"provider,omitempty"`
	ModelName    string `json:"modelName"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// TokenUsage is the aggregate over a result's usage items. Aggregation is
// plain summation, so it is order-independent.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Add folds one usage item into the aggregate.
func (u *TokenUsage) Add(item TokenUsageItem) {
	u.InputTokens += item.InputTokens
	u.OutputTokens += item.OutputTokens
	u.TotalTokens += item.InputTokens + item.OutputTokens
}

// Merge adds another aggregate to this one.
func (u *TokenUsage) Merge(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// ActionMeta identifies the invocation a usage report belongs to.
type ActionMeta struct {
	SkillName string     `json:"skillName"`
	ModelName string     `json:"modelName"`
	Type      ResultType `json:"type"`
}

// UsageReportJob is the payload on the asynchronous usage-reporting
// channel. It is fire-and-forget relative to the main event stream and
// carries no ordering guarantee.
type UsageReportJob struct {
	UID       string         `json:"uid"`
	ResultID  string         `json:"resultId"`
	Meta      ActionMeta     `json:"actionMeta"`
	Item      TokenUsageItem `json:"usageItem"`
	Timestamp time.Time      `json:"timestamp"`
}
