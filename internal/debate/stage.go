package debate

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/michaelbrown/parley/internal/llm"
)

// FailureMarker is the sentinel content recorded in place of a
// participant's output when its model call fails. It is fixed so search
// and display can tell failed contributions from real ones.
const FailureMarker = "[no response] participant failed to produce a reply"

// ErrAllParticipantsFailed is returned by RunStage when every participant
// in the stage failed. The stage output still carries the placeholders.
var ErrAllParticipantsFailed = errors.New("all participants failed")

// StageOutput is everything a stage produced: one message per participant
// (real reply or failure placeholder) and the successful replies joined
// for convenience.
type StageOutput struct {
	Messages []llm.Message
	Combined string
}

// StageRunner executes one debate stage across an ordered participant list.
type StageRunner struct {
	// OnMessage, if set, is called for each message as it is produced.
	OnMessage func(llm.Message)
}

// RunStage invokes each participant in configured order. The stage's system
// instruction is prepended for the calls only and never enters the output.
// Each participant's reply is appended to the working context before the
// next participant runs, so contributions compound within the stage. This
// sequencing is deliberate; do not parallelize it.
//
// A failed participant is recorded as a FailureMarker placeholder and the
// stage continues. Every participant is attempted before the all-failed
// determination is made.
func (r *StageRunner) RunStage(ctx context.Context, stage llm.Stage, prior []llm.Message, participants []llm.Client) (*StageOutput, error) {
	working := make([]llm.Message, 0, len(prior)+len(participants)+1)
	working = append(working, llm.SystemMessage(StageInstruction(stage)))
	working = append(working, prior...)

	out := &StageOutput{}
	var parts []string
	failed := 0

	for _, p := range participants {
		reply, err := p.Complete(ctx, working)

		var msg llm.Message
		if err != nil {
			log.Warn().Err(err).Str("stage", string(stage)).Str("participant", p.Name()).
				Msg("participant failed")
			msg = llm.ModelMessage(p.Name(), stage, FailureMarker)
			failed++
		} else {
			msg = llm.ModelMessage(p.Name(), stage, reply)
			parts = append(parts, reply)
		}

		working = append(working, msg)
		out.Messages = append(out.Messages, msg)
		if r.OnMessage != nil {
			r.OnMessage(msg)
		}
	}

	out.Combined = strings.Join(parts, "\n\n")
	if len(participants) > 0 && failed == len(participants) {
		return out, ErrAllParticipantsFailed
	}
	return out, nil
}
