package types

import "time"

// TriggerType is the kind of a skill trigger.
type TriggerType string

const (
	TriggerSimpleEvent TriggerType = "simpleEvent"
	TriggerTimer       TriggerType = "timer"
)

// RepeatInterval is the coarse repeat unit of a timer trigger.
type RepeatInterval string

const (
	RepeatHour  RepeatInterval = "hour"
	RepeatDay   RepeatInterval = "day"
	RepeatWeek  RepeatInterval = "week"
	RepeatMonth RepeatInterval = "month"
	RepeatYear  RepeatInterval = "year"
)

// Period maps the interval to a fixed duration. Month and year are
// approximated as 30 and 365 days; the schedule is not calendar-aware.
func (r RepeatInterval) Period() (time.Duration, bool) {
	switch r {
	case RepeatHour:
		return time.Hour, true
	case RepeatDay:
		return 24 * time.Hour, true
	case RepeatWeek:
		return 7 * 24 * time.Hour, true
	case RepeatMonth:
		return 30 * 24 * time.Hour, true
	case RepeatYear:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// TimerConfig configures a timer trigger.
type TimerConfig struct {
	Datetime       time.Time      `json:"datetime"`
	RepeatInterval RepeatInterval `json:"repeatInterval,omitempty"`
}

// SkillTrigger causes a skill invocation to be scheduled automatically.
//
// Invariant: BoundJobID is non-empty iff a queue job is currently
// scheduled for this trigger. Enable and disable keep the two in
// lockstep; the scheduler guards both transitions on BoundJobID.
type SkillTrigger struct {
	TriggerID       string         `json:"triggerId"`
	UID             string         `json:"uid"`
	SkillName       string         `json:"skillName"`
	Type            TriggerType    `json:"triggerType"`
	SimpleEventName string         `json:"simpleEventName,omitempty"`
	Timer           *TimerConfig   `json:"timerConfig,omitempty"`
	Input           *SkillInput    `json:"input,omitempty"`
	Context         SkillContext   `json:"context,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
	Enabled         bool           `json:"enabled"`
	BoundJobID      string         `json:"boundJobId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}
