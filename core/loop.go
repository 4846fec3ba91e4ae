package orchestration

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voialabs/callcore/core/llms"
	"github.com/voialabs/callcore/core/metrics"
	"github.com/voialabs/callcore/core/session"
	"github.com/voialabs/callcore/core/speechtotext"
)

// step tags the pipeline stage a failure happened in. The tag, not the error
// type, decides the exit reason and the closing line.
type step string

const (
	stepListen     step = "listen"
	stepTranscribe step = "transcribe"
	stepGenerate   step = "generate"
	stepSpeak      step = "speak"
	stepStore      step = "store"
)

func (s step) exitReason() session.ExitReason {
	switch s {
	case stepTranscribe:
		return session.ExitReasonSTTFailure
	case stepGenerate:
		return session.ExitReasonLLMFailure
	case stepSpeak:
		return session.ExitReasonTTSFailure
	default:
		return session.ExitReasonGeneralError
	}
}

// runLoop is the conversation state machine. It never returns an error: every
// failure inside it is converted into an exit reason and a spoken closing
// line, and the caller's teardown handles the rest.
func (o *Orchestrator) runLoop(ctx context.Context, call Call, startedAt time.Time) {
	buffer := newAccumulator(o.encoding)

	next, stop := iter.Pull2(o.transport.StreamInbound(ctx, call.ChannelID))
	defer stop()

	for {
		if reason := o.checkLimits(ctx, call, startedAt); reason != session.ExitReasonNone {
			o.endConversation(ctx, call, reason, o.config.closingLine(reason))
			return
		}

		chunk, chunkErr, ok := next()
		if !ok {
			// Stream exhaustion means the remote party hung up. Not a local
			// failure; there is nobody left to apologize to.
			if err := o.store.SetExitReason(ctx, call.CallID, session.ExitReasonCallerHangup); err != nil {
				logger.Warn("failed to record hangup exit reason",
					"call_id", call.CallID, "error", err)
			}
			return
		}
		if chunkErr != nil {
			o.failStep(ctx, call, stepListen, chunkErr)
			return
		}

		buffer.Append(chunk)
		if buffer.Duration() < o.config.AccumulationTarget {
			continue
		}

		iterationStart := time.Now()

		transcript, err := o.transcribe(ctx, buffer.Bytes())
		if err != nil {
			o.failStep(ctx, call, stepTranscribe, err)
			return
		}
		buffer.Reset()

		if transcript == "" {
			if done := o.handleSilence(ctx, call); done {
				return
			}
			continue
		}

		if err := o.store.ResetSilence(ctx, call.CallID); err != nil {
			o.failStep(ctx, call, stepStore, err)
			return
		}
		if err := o.store.AppendTurn(ctx, call.CallID, session.RoleUser, transcript); err != nil {
			o.failStep(ctx, call, stepStore, err)
			return
		}

		doc, err := o.store.Read(ctx, call.CallID)
		if err != nil {
			o.failStep(ctx, call, stepStore, err)
			return
		}

		response, err := o.generate(ctx, call.SystemPrompt, doc.History)
		if err != nil {
			o.failStep(ctx, call, stepGenerate, err)
			return
		}

		if o.isConfused(response) {
			// A confused assistant still delivers its own line before the
			// call ends; it is not replaced by a canned message.
			o.endConversation(ctx, call, session.ExitReasonConfusion, response)
			return
		}

		if err := o.speak(ctx, call, response); err != nil {
			o.failStep(ctx, call, stepSpeak, err)
			return
		}
		if err := o.store.AppendTurn(ctx, call.CallID, session.RoleAssistant, response); err != nil {
			o.failStep(ctx, call, stepStore, err)
			return
		}

		if elapsed := time.Since(iterationStart); elapsed > o.config.IterationTimeout {
			logger.Warn("iteration budget exceeded",
				"call_id", call.CallID, "elapsed", elapsed.String())
			o.endConversation(ctx, call, session.ExitReasonTimeout,
				o.config.closingLine(session.ExitReasonTimeout))
			return
		}
	}
}

// checkLimits applies the hard ceilings at the top of every iteration. They
// are independent of conversational content.
func (o *Orchestrator) checkLimits(ctx context.Context, call Call, startedAt time.Time) session.ExitReason {
	doc, err := o.store.Read(ctx, call.CallID)
	if err != nil {
		logger.Warn("failed to read session for limit check",
			"call_id", call.CallID, "error", err)
		return session.ExitReasonGeneralError
	}
	if doc.State != session.LifecycleActive {
		if doc.ExitReason != session.ExitReasonNone {
			return doc.ExitReason
		}
		return session.ExitReasonGeneralError
	}
	if doc.TurnCount >= o.config.MaxTurns {
		return session.ExitReasonMaxTurns
	}
	if time.Since(startedAt) >= o.config.MaxDuration {
		return session.ExitReasonMaxDuration
	}
	return session.ExitReasonNone
}

// handleSilence applies the two-strikes policy on empty transcriptions. The
// first strike prompts the caller once; the second ends the call. Reports
// whether the loop should stop.
func (o *Orchestrator) handleSilence(ctx context.Context, call Call) bool {
	count, err := o.store.IncrementSilence(ctx, call.CallID)
	if err != nil {
		o.failStep(ctx, call, stepStore, err)
		return true
	}

	if count >= 2 {
		o.endConversation(ctx, call, session.ExitReasonSilence,
			o.config.closingLine(session.ExitReasonSilence))
		return true
	}

	if err := o.speak(ctx, call, o.config.SilencePrompt); err != nil {
		o.failStep(ctx, call, stepSpeak, err)
		return true
	}
	if err := o.store.AppendTurn(ctx, call.CallID, session.RoleAssistant, o.config.SilencePrompt); err != nil {
		logger.Warn("failed to record silence prompt",
			"call_id", call.CallID, "error", err)
	}
	return false
}

func (o *Orchestrator) transcribe(ctx context.Context, audioBytes []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.StepTimeout)
	defer cancel()

	start := time.Now()
	transcript, err := o.speechToText.Transcribe(ctx, audioBytes,
		speechtotext.WithEncodingInfo(o.encoding))
	metrics.ObserveStep("transcribe", time.Since(start))
	return transcript, err
}

func (o *Orchestrator) generate(ctx context.Context, systemPrompt string, history []session.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.StepTimeout)
	defer cancel()

	turns := make([]llms.Turn, 0, len(history))
	for _, turn := range history {
		turns = append(turns, llms.Turn{Role: llms.Role(turn.Role), Content: turn.Content})
	}

	start := time.Now()
	response, err := o.llm.Prompt(ctx, systemPrompt, llms.WithTurns(turns))
	metrics.ObserveStep("generate", time.Since(start))
	return response, err
}

func (o *Orchestrator) isConfused(response string) bool {
	lowered := strings.ToLower(response)
	for _, pattern := range o.config.ConfusionPatterns {
		if strings.Contains(lowered, pattern) {
			return true
		}
	}
	return false
}

// failStep records the exit reason for the failed stage and attempts the
// matching apology. Playing the apology is best-effort; the loop ends either
// way.
func (o *Orchestrator) failStep(ctx context.Context, call Call, failedStep step, err error) {
	reason := failedStep.exitReason()
	recordedErr := fmt.Errorf("step %s failed: %w", failedStep, err)
	span := trace.SpanFromContext(ctx)
	span.RecordError(recordedErr)
	span.SetStatus(codes.Error, recordedErr.Error())
	logger.Error("conversation step failed",
		"call_id", call.CallID,
		"step", string(failedStep),
		"exit_reason", string(reason),
		"error", err,
	)
	o.endConversation(ctx, call, reason, o.config.closingLine(reason))
}

// endConversation records the exit reason and speaks the final line. The
// reason is write-once in the store, so an earlier reason survives a later
// attempt.
func (o *Orchestrator) endConversation(ctx context.Context, call Call, reason session.ExitReason, line string) {
	if err := o.store.SetExitReason(ctx, call.CallID, reason); err != nil {
		logger.Warn("failed to record exit reason",
			"call_id", call.CallID, "error", err)
	}
	if err := o.speak(ctx, call, line); err != nil {
		logger.Warn("failed to play closing line",
			"call_id", call.CallID, "error", err)
		return
	}
	if err := o.store.AppendTurn(ctx, call.CallID, session.RoleAssistant, line); err != nil {
		logger.Warn("failed to record closing line",
			"call_id", call.CallID, "error", err)
	}
}
