// Package session holds ephemeral per-call conversation state.
//
// Each active call owns exactly one Session document, keyed by call id.
// A single orchestrator instance is the only writer for a given call, so
// stores only need durability within the TTL window, not cross-writer
// atomicity. Entries expire on their own so state is reclaimed even when
// teardown never runs.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
	ErrInvalidID     = errors.New("invalid call id")
)

// DefaultTTL bounds how long an abandoned session survives in the store.
const DefaultTTL = time.Hour

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Lifecycle is monotonic: active, then ending, then ended. It never
// reverses.
type Lifecycle string

const (
	LifecycleActive Lifecycle = "active"
	LifecycleEnding Lifecycle = "ending"
	LifecycleEnded  Lifecycle = "ended"
)

// ExitReason is the closed-set cause recorded for why a call's conversation
// loop terminated. Once set it is never overwritten.
type ExitReason string

const (
	ExitReasonNone         ExitReason = ""
	ExitReasonSilence      ExitReason = "silence"
	ExitReasonConfusion    ExitReason = "confusion"
	ExitReasonMaxTurns     ExitReason = "max_turns"
	ExitReasonMaxDuration  ExitReason = "max_duration"
	ExitReasonSTTFailure   ExitReason = "stt_failure"
	ExitReasonLLMFailure   ExitReason = "llm_failure"
	ExitReasonTTSFailure   ExitReason = "tts_failure"
	ExitReasonTimeout      ExitReason = "timeout"
	ExitReasonGeneralError ExitReason = "general_error"
	ExitReasonCallerHangup ExitReason = "caller_hangup"
	ExitReasonCompleted    ExitReason = "completed"
)

// Turn is one utterance in the conversation, either transcribed user speech
// or generated assistant speech. History order is chronological and is never
// reordered or truncated.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-call conversation document.
type Session struct {
	CallID      string `json:"call_id"`
	TenantID    string `json:"tenant_id"`
	AIProfileID string `json:"ai_profile_id"`

	StartedAt    time.Time  `json:"started_at"`
	TurnCount    int        `json:"turn_count"`
	SilenceCount int        `json:"silence_count"`
	State        Lifecycle  `json:"state"`
	ExitReason   ExitReason `json:"exit_reason,omitempty"`

	History []Turn `json:"history"`
}

// Store is the contract the orchestrator consumes. All writes refresh the
// entry's expiry.
type Store interface {
	// Create initializes the session document. The orchestrator calls it
	// exactly once per call, before any turn processing.
	Create(ctx context.Context, callID, tenantID, aiProfileID string) error
	// Read returns the current document or ErrNotFound.
	Read(ctx context.Context, callID string) (*Session, error)
	// AppendTurn appends a turn to history and, for user turns, increments
	// the turn count.
	AppendTurn(ctx context.Context, callID string, role Role, content string) error
	// IncrementSilence bumps the consecutive-silence counter and returns the
	// new value.
	IncrementSilence(ctx context.Context, callID string) (int, error)
	ResetSilence(ctx context.Context, callID string) error
	// SetExitReason records the loop's exit cause. It is a no-op if a reason
	// was already recorded.
	SetExitReason(ctx context.Context, callID string, reason ExitReason) error
	// MarkEnding advances the lifecycle to ending.
	MarkEnding(ctx context.Context, callID string) error
	// MarkEnded advances the lifecycle to its terminal state.
	MarkEnded(ctx context.Context, callID string) error
	Delete(ctx context.Context, callID string) error
}
