// Package skill is the orchestration core: it admits invocation
// requests, resolves their context, dispatches execution over the
// durable queue or inline against a live stream, aggregates capability
// output into durable records, and schedules timer triggers.
//
// Skills themselves are opaque capabilities behind the Skill interface;
// the engine never inspects prompts or provider wiring.
package skill
