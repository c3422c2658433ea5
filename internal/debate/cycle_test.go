package debate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/michaelbrown/parley/internal/llm"
	"github.com/michaelbrown/parley/internal/storage"
	"github.com/michaelbrown/parley/internal/storage/jsonfile"
)

func testStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := jsonfile.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fullPanel(clients ...llm.Client) Panel {
	return Panel{Propose: clients, Critique: clients, Synthesize: clients}
}

func TestCycleFullSuccess(t *testing.T) {
	store := testStore(t)
	alpha := &stubClient{name: "alpha", reply: "from alpha"}
	beta := &stubClient{name: "beta", reply: "from beta"}

	c := New(fullPanel(alpha, beta), store)
	sess, err := c.Run(context.Background(), "how to test concurrent code")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Topic message plus one message per participant per stage.
	if want := 1 + 3*2; len(sess.Messages) != want {
		t.Fatalf("got %d messages, want %d", len(sess.Messages), want)
	}
	if sess.Status != storage.StatusComplete {
		t.Errorf("status = %q, want complete", sess.Status)
	}

	wantStages := []llm.Stage{
		llm.StageNone,
		llm.StagePropose, llm.StagePropose,
		llm.StageCritique, llm.StageCritique,
		llm.StageSynthesize, llm.StageSynthesize,
	}
	wantAuthors := []string{"user", "alpha", "beta", "alpha", "beta", "alpha", "beta"}
	for i, m := range sess.Messages {
		if m.Stage != wantStages[i] {
			t.Errorf("message %d stage = %q, want %q", i, m.Stage, wantStages[i])
		}
		if m.Author != wantAuthors[i] {
			t.Errorf("message %d author = %q, want %q", i, m.Author, wantAuthors[i])
		}
	}

	// Timestamps never decrease.
	for i := 1; i < len(sess.Messages); i++ {
		if sess.Messages[i].Timestamp.Before(sess.Messages[i-1].Timestamp) {
			t.Errorf("message %d is older than its predecessor", i)
		}
	}

	// The persisted record matches the returned session.
	loaded, err := store.Load(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Status != storage.StatusComplete {
		t.Errorf("persisted status = %q, want complete", loaded.Status)
	}
	if len(loaded.Messages) != len(sess.Messages) {
		t.Errorf("persisted %d messages, want %d", len(loaded.Messages), len(sess.Messages))
	}
}

func TestCycleAbortsOnFirstStage(t *testing.T) {
	store := testStore(t)
	alpha := failing("alpha")
	beta := failing("beta")

	c := New(fullPanel(alpha, beta), store)
	sess, err := c.Run(context.Background(), "doomed topic")

	var aborted *StageAbortedError
	if !errors.As(err, &aborted) {
		t.Fatalf("err = %v, want *StageAbortedError", err)
	}
	if aborted.Stage != llm.StagePropose {
		t.Errorf("aborted stage = %q, want propose", aborted.Stage)
	}

	// Partial work is persisted: the topic plus the propose placeholders,
	// nothing from later stages.
	loaded, lerr := store.Load(context.Background(), sess.ID)
	if lerr != nil {
		t.Fatalf("partial session was not persisted: %v", lerr)
	}
	if want := 1 + 2; len(loaded.Messages) != want {
		t.Fatalf("persisted %d messages, want %d", len(loaded.Messages), want)
	}
	for _, m := range loaded.Messages[1:] {
		if m.Content != FailureMarker {
			t.Errorf("persisted content = %q, want the failure marker", m.Content)
		}
	}
	if loaded.Status != storage.StatusActive {
		t.Errorf("aborted session status = %q, want active", loaded.Status)
	}

	// Later stages never ran.
	if len(alpha.calls) != 1 || len(beta.calls) != 1 {
		t.Error("participants should only have been invoked for the aborted stage")
	}
}

func TestCycleAbortsMidCycle(t *testing.T) {
	store := testStore(t)
	// Succeeds in propose, then fails from the critique stage onward.
	flaky := &stubClient{name: "alpha", reply: "good idea"}

	c := New(Panel{
		Propose:    []llm.Client{flaky},
		Critique:   []llm.Client{failing("alpha")},
		Synthesize: []llm.Client{&stubClient{name: "alpha", reply: "never reached"}},
	}, store)

	sess, err := c.Run(context.Background(), "flaky topic")

	var aborted *StageAbortedError
	if !errors.As(err, &aborted) {
		t.Fatalf("err = %v, want *StageAbortedError", err)
	}
	if aborted.Stage != llm.StageCritique {
		t.Errorf("aborted stage = %q, want critique", aborted.Stage)
	}

	loaded, lerr := store.Load(context.Background(), sess.ID)
	if lerr != nil {
		t.Fatalf("Load: %v", lerr)
	}
	// Topic, one propose reply, one critique placeholder.
	if len(loaded.Messages) != 3 {
		t.Fatalf("persisted %d messages, want 3", len(loaded.Messages))
	}
	if loaded.Messages[1].Content != "good idea" {
		t.Errorf("propose output = %q, want the real reply", loaded.Messages[1].Content)
	}
	if loaded.Messages[2].Content != FailureMarker {
		t.Errorf("critique output = %q, want the failure marker", loaded.Messages[2].Content)
	}
	for _, m := range loaded.Messages {
		if m.Stage == llm.StageSynthesize {
			t.Error("synthesize stage should never have run")
		}
	}
}

func TestCycleSessionIDCollision(t *testing.T) {
	store := testStore(t)
	alpha := &stubClient{name: "alpha", reply: "ok"}

	// Freeze the clock so both cycles derive the same base id.
	frozen := time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC)

	first := New(fullPanel(alpha), store)
	first.now = func() time.Time { return frozen }
	a, err := first.Run(context.Background(), "topic one")
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	second := New(fullPanel(alpha), store)
	second.now = func() time.Time { return frozen }
	b, err := second.Run(context.Background(), "topic two")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if a.ID == b.ID {
		t.Fatalf("both sessions got id %q", a.ID)
	}
	if a.ID != storage.NewSessionID(frozen) {
		t.Errorf("first id = %q, want the time-derived base", a.ID)
	}
	if _, err := store.Load(context.Background(), b.ID); err != nil {
		t.Errorf("collision-suffixed session not persisted: %v", err)
	}
}

func TestCycleEmptyPanel(t *testing.T) {
	store := testStore(t)

	c := New(Panel{}, store)
	_, err := c.Run(context.Background(), "nobody home")
	var aborted *StageAbortedError
	if errors.As(err, &aborted) {
		t.Fatal("an empty stage should not be reported as all-failed")
	}
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
