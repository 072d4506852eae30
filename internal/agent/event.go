package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// eventVersion is stamped on every emitted AgentEvent so a future breaking
// change to the payload shapes can be detected by consumers.
const eventVersion = 1

// EventEmitter assigns a monotonic per-session sequence number to each
// AgentEvent and forwards it to a sink, mirroring the teacher's event
// emission helper but narrowed to the seven fixed event kinds (spec §4.7).
type EventEmitter struct {
	sink      EventSink
	sessionID string
	seq       atomic.Uint64
}

// NewEventEmitter constructs an emitter bound to one session and sink. A nil
// sink is replaced with NopSink so callers need not guard every emit call.
func NewEventEmitter(sessionID string, sink EventSink) *EventEmitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &EventEmitter{sink: sink, sessionID: sessionID}
}

func (e *EventEmitter) next() (uint64, time.Time) {
	return e.seq.Add(1), time.Now()
}

func (e *EventEmitter) emit(ctx context.Context, ev models.AgentEvent) {
	seq, now := e.next()
	ev.Version = eventVersion
	ev.Sequence = seq
	ev.Time = now
	ev.SessionID = e.sessionID
	e.sink.Emit(ctx, ev)
}

// Thought emits a Thought event for the LLM's reasoning on the current task.
func (e *EventEmitter) Thought(ctx context.Context, taskPosition int, content string) {
	e.emit(ctx, models.AgentEvent{
		Type:    models.EventThought,
		Thought: &models.ThoughtPayload{TaskPosition: taskPosition, Content: content},
	})
}

// Action emits an Action event describing the choice the executor is about
// to act on.
func (e *EventEmitter) Action(ctx context.Context, payload models.ActionPayload) {
	e.emit(ctx, models.AgentEvent{Type: models.EventAction, Action: &payload})
}

// Observation emits an Observation event carrying a tool invocation's
// outcome.
func (e *EventEmitter) Observation(ctx context.Context, payload models.ObservationPayload) {
	e.emit(ctx, models.AgentEvent{Type: models.EventObservation, Observation: &payload})
}

// StateUpdate emits a StateUpdate event announcing a persisted version bump.
func (e *EventEmitter) StateUpdate(ctx context.Context, version int, summary string) {
	e.emit(ctx, models.AgentEvent{
		Type:        models.EventStateUpdate,
		StateUpdate: &models.StateUpdatePayload{Version: version, Summary: summary},
	})
}

// AskUser emits an AskUser event, signalling the executor is suspending the
// run pending a human answer.
func (e *EventEmitter) AskUser(ctx context.Context, question string) {
	e.emit(ctx, models.AgentEvent{
		Type:    models.EventAskUser,
		AskUser: &models.AskUserPayload{Question: question},
	})
}

// Complete emits the terminal Complete event for a successful execute call.
func (e *EventEmitter) Complete(ctx context.Context, summary string, stats *models.RunStats) {
	e.emit(ctx, models.AgentEvent{
		Type:     models.EventComplete,
		Complete: &models.CompletePayload{Summary: summary, Stats: stats},
	})
}

// Error emits a terminal or recoverable Error event, deriving Kind and
// Recoverable from an AgentError when the cause carries one.
func (e *EventEmitter) Error(ctx context.Context, err error) {
	payload := models.ErrorPayload{Kind: string(KindToolExecution), Message: err.Error()}
	if ae, ok := GetAgentError(err); ok {
		payload.Kind = string(ae.Kind)
		payload.Recoverable = ae.Recoverable()
	}
	e.emit(ctx, models.AgentEvent{Type: models.EventError, Error: &payload})
}
