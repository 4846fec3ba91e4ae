// Package orchestration drives a single telephone call through repeated
// turns of listen, transcribe, generate and speak until a termination
// condition fires.
//
// One call is one HandleCall invocation; many calls run concurrently, each
// with its own session document and channel handle. External services are
// consumed through small adapter interfaces and every service call is a
// single bounded-timeout attempt. Whatever happens inside the loop, the
// call is always torn down.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voialabs/callcore/core/audio"
	"github.com/voialabs/callcore/core/llms"
	"github.com/voialabs/callcore/core/metrics"
	"github.com/voialabs/callcore/core/session"
	"github.com/voialabs/callcore/core/texttospeech"
)

type Orchestrator struct {
	store        session.Store
	transport    Transport
	speechToText SpeechToText
	llm          LLM
	textToSpeech TextToSpeech

	config   Config
	encoding audio.EncodingInfo
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		config:   DefaultConfig(),
		encoding: audio.GetDefaultEncodingInfo(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Call identifies one inbound call and the profile answering it. All fields
// are supplied by the external routing layer.
type Call struct {
	CallID      string
	ChannelID   string
	TenantID    string
	AIProfileID string
	// SystemPrompt conditions the generator for this call's AI profile. It
	// must be non-empty.
	SystemPrompt string
}

func (o *Orchestrator) validate(call Call) error {
	switch {
	case o.store == nil:
		return errors.New("no session store configured")
	case o.transport == nil:
		return errors.New("no transport configured")
	case o.speechToText == nil:
		return errors.New("no speech-to-text client configured")
	case o.llm == nil:
		return errors.New("no llm client configured")
	case o.textToSpeech == nil:
		return errors.New("no text-to-speech client configured")
	case call.CallID == "":
		return errors.New("call id is required")
	case call.SystemPrompt == "":
		return errors.New("system prompt is required")
	}
	return nil
}

// HandleCall runs the complete conversation for one inbound call: create
// the session, answer, greet, loop until a termination condition, then tear
// everything down. Loop-level failures are absorbed into an exit reason and
// a spoken closing line; only failures before the loop starts surface as an
// error, and teardown runs even then.
func (o *Orchestrator) HandleCall(ctx context.Context, call Call) (err error) {
	if err := o.validate(call); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "orchestration.HandleCall")
	defer span.End()
	span.SetAttributes(
		attribute.String("call.id", call.CallID),
		attribute.String("call.tenant_id", call.TenantID),
	)

	startedAt := time.Now()

	// Teardown is armed before any external acquisition, session creation
	// included, so no failure can leave the channel open.
	metrics.CallStarted()
	defer func() {
		fallback := session.ExitReasonGeneralError
		if r := recover(); r != nil {
			logger.Error("conversation loop panicked",
				"call_id", call.CallID, "panic", fmt.Sprint(r))
			err = fmt.Errorf("conversation loop panicked: %v", r)
		} else if err == nil {
			fallback = session.ExitReasonCompleted
		}

		reason := o.teardown(ctx, call, fallback)
		span.SetAttributes(attribute.String("call.exit_reason", string(reason)))
		logger.Info("call ended",
			"call_id", call.CallID,
			"exit_reason", string(reason),
			"duration", time.Since(startedAt).String(),
		)
	}()

	if err := o.store.Create(ctx, call.CallID, call.TenantID, call.AIProfileID); err != nil {
		err = fmt.Errorf("failed to create session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := o.transport.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect transport: %w", err)
	}
	if err := o.transport.Answer(ctx, call.ChannelID); err != nil {
		return fmt.Errorf("failed to answer call: %w", err)
	}

	greeting := o.greet(ctx, call)
	if err := o.speak(ctx, call, greeting); err != nil {
		return fmt.Errorf("failed to play greeting: %w", err)
	}
	logger.Info("time to first audio",
		"call_id", call.CallID, "elapsed", time.Since(startedAt).String())

	o.runLoop(ctx, call, startedAt)
	return nil
}

// greet asks the generator to open the conversation. Any failure falls back
// to a fixed greeting; a call is never aborted for lack of an opening line.
func (o *Orchestrator) greet(ctx context.Context, call Call) string {
	ctx, cancel := context.WithTimeout(ctx, o.config.StepTimeout)
	defer cancel()

	greeting, err := o.llm.Prompt(ctx, call.SystemPrompt,
		llms.WithTurns([]llms.Turn{
			{Role: llms.RoleUser, Content: "Start the conversation with a greeting"},
		}),
		llms.WithMaxTokens(50),
	)
	if err != nil || greeting == "" {
		if err != nil {
			logger.Warn("greeting generation failed, using fallback",
				"call_id", call.CallID, "error", err)
		}
		return o.config.GreetingFallback
	}
	return greeting
}

// speak synthesizes text under the step timeout and streams it to the
// caller. Playback itself is paced by audio length and is not bounded by the
// step timeout.
func (o *Orchestrator) speak(ctx context.Context, call Call, text string) error {
	synthCtx, cancel := context.WithTimeout(ctx, o.config.StepTimeout)
	defer cancel()

	synthStart := time.Now()
	audioBytes, err := o.textToSpeech.Synthesize(synthCtx, text,
		texttospeech.WithEncodingInfo(o.encoding))
	metrics.ObserveStep("synthesize", time.Since(synthStart))
	if err != nil {
		return fmt.Errorf("failed to synthesize speech: %w", err)
	}
	if len(audioBytes) == 0 {
		return nil
	}

	playStart := time.Now()
	err = o.transport.Play(ctx, call.ChannelID, audioBytes, o.encoding)
	metrics.ObserveStep("play", time.Since(playStart))
	if err != nil {
		return fmt.Errorf("failed to play audio: %w", err)
	}
	return nil
}

// teardown is the single exit path for every call. It resolves the final
// exit reason (a loop-set value beats the fallback), marks the session
// ending, hangs up, marks it ended, deletes it and disconnects. Each step is
// best-effort so one failure cannot leave the call half-open; it runs even
// when the session was never created and every store call misses.
func (o *Orchestrator) teardown(ctx context.Context, call Call, fallback session.ExitReason) session.ExitReason {
	ctx = context.WithoutCancel(ctx)

	reason := fallback
	turns := 0
	if doc, err := o.store.Read(ctx, call.CallID); err != nil {
		logger.Warn("failed to read session during teardown",
			"call_id", call.CallID, "error", err)
	} else {
		if doc.ExitReason != session.ExitReasonNone {
			reason = doc.ExitReason
		}
		turns = doc.TurnCount
	}

	if err := o.store.SetExitReason(ctx, call.CallID, reason); err != nil {
		logger.Warn("failed to record exit reason",
			"call_id", call.CallID, "error", err)
	}
	if err := o.store.MarkEnding(ctx, call.CallID); err != nil {
		logger.Warn("failed to mark session ending",
			"call_id", call.CallID, "error", err)
	}
	if err := o.transport.Hangup(ctx, call.ChannelID); err != nil {
		logger.Warn("failed to hang up channel",
			"call_id", call.CallID, "error", err)
	}
	if err := o.store.MarkEnded(ctx, call.CallID); err != nil {
		logger.Warn("failed to mark session ended",
			"call_id", call.CallID, "error", err)
	}
	if err := o.store.Delete(ctx, call.CallID); err != nil {
		logger.Warn("failed to delete session",
			"call_id", call.CallID, "error", err)
	}
	if err := o.transport.Disconnect(ctx); err != nil {
		logger.Warn("failed to disconnect transport",
			"call_id", call.CallID, "error", err)
	}

	metrics.CallEnded(string(reason), turns)
	return reason
}
