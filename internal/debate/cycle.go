package debate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/michaelbrown/parley/internal/llm"
	"github.com/michaelbrown/parley/internal/storage"
)

// StageAbortedError reports that every participant of a stage failed and
// the cycle stopped there. The partial session remains persisted.
type StageAbortedError struct {
	Stage llm.Stage
}

func (e *StageAbortedError) Error() string {
	return fmt.Sprintf("stage %s aborted: all participants failed", e.Stage)
}

// Cycle runs the fixed Propose -> Critique & Filter -> Synthesize sequence
// over one topic, building and persisting one session as it goes.
type Cycle struct {
	panel  Panel
	store  storage.Store
	runner *StageRunner
	now    func() time.Time
}

// New creates a debate cycle over the given panel, persisting into store.
func New(panel Panel, store storage.Store) *Cycle {
	return &Cycle{
		panel:  panel,
		store:  store,
		runner: &StageRunner{},
		now:    time.Now,
	}
}

// OnMessage registers a callback invoked for every message a stage
// produces, in order. Used by the CLI and websocket shells for progress.
func (c *Cycle) OnMessage(fn func(llm.Message)) {
	c.runner.OnMessage = fn
}

var stageOrder = []llm.Stage{llm.StagePropose, llm.StageCritique, llm.StageSynthesize}

// Run executes a full debate cycle. Whatever work completed before an
// error is persisted; partial sessions keep status active. On an all-fail
// stage the returned error is *StageAbortedError and the returned session
// holds the partial transcript.
func (c *Cycle) Run(ctx context.Context, topic string) (*storage.Session, error) {
	created := c.now().UTC()
	sess := &storage.Session{
		Topic:     topic,
		Status:    storage.StatusActive,
		CreatedAt: created,
		Messages:  []llm.Message{llm.UserMessage(topic)},
	}

	// Session ids are time-derived; collision-check against the store and
	// retry with a suffix until Create accepts one.
	base := storage.NewSessionID(created)
	sess.ID = base
	for n := 2; ; n++ {
		err := c.store.Create(ctx, sess)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrDuplicateID) {
			sess.ID = fmt.Sprintf("%s-%d", base, n)
			continue
		}
		return nil, fmt.Errorf("creating session: %w", err)
	}

	log.Info().Str("session_id", sess.ID).Str("topic", topic).Msg("debate cycle started")

	for _, stage := range stageOrder {
		out, err := c.runner.RunStage(ctx, stage, sess.Messages, c.panel.Participants(stage))
		if len(out.Messages) > 0 {
			if aerr := c.store.Append(ctx, sess.ID, out.Messages); aerr != nil {
				return sess, fmt.Errorf("persisting %s messages: %w", stage, aerr)
			}
			sess.Messages = append(sess.Messages, out.Messages...)
		}

		if errors.Is(err, ErrAllParticipantsFailed) {
			log.Warn().Str("session_id", sess.ID).Str("stage", string(stage)).
				Msg("debate cycle aborted")
			return sess, &StageAbortedError{Stage: stage}
		}
		if err != nil {
			return sess, fmt.Errorf("running %s stage: %w", stage, err)
		}
	}

	if err := c.store.SetStatus(ctx, sess.ID, storage.StatusComplete); err != nil {
		return sess, fmt.Errorf("marking session complete: %w", err)
	}
	sess.Status = storage.StatusComplete

	log.Info().Str("session_id", sess.ID).Int("messages", len(sess.Messages)).
		Msg("debate cycle complete")
	return sess, nil
}
