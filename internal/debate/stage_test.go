package debate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/michaelbrown/parley/internal/llm"
)

// stubClient is a scripted participant. It records every conversation it
// was sent so tests can assert on the context each participant saw.
type stubClient struct {
	name  string
	reply string
	err   error
	calls [][]llm.Message
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) Complete(ctx context.Context, conversation []llm.Message) (string, error) {
	recorded := make([]llm.Message, len(conversation))
	copy(recorded, conversation)
	s.calls = append(s.calls, recorded)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func failing(name string) *stubClient {
	return &stubClient{name: name, err: &llm.ModelError{Kind: llm.ErrTransport, Model: name}}
}

func TestRunStageAllSucceed(t *testing.T) {
	alpha := &stubClient{name: "alpha", reply: "idea A"}
	beta := &stubClient{name: "beta", reply: "idea B"}

	r := &StageRunner{}
	topic := llm.UserMessage("the topic")
	out, err := r.RunStage(context.Background(), llm.StagePropose, []llm.Message{topic}, []llm.Client{alpha, beta})
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	if len(out.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(out.Messages))
	}
	for i, want := range []string{"alpha", "beta"} {
		if out.Messages[i].Author != want {
			t.Errorf("message %d author = %q, want %q", i, out.Messages[i].Author, want)
		}
		if out.Messages[i].Stage != llm.StagePropose {
			t.Errorf("message %d stage = %q, want propose", i, out.Messages[i].Stage)
		}
		if out.Messages[i].Role != llm.RoleAssistant {
			t.Errorf("message %d role = %q, want assistant", i, out.Messages[i].Role)
		}
	}

	if !strings.Contains(out.Combined, "idea A") || !strings.Contains(out.Combined, "idea B") {
		t.Errorf("combined output missing replies: %q", out.Combined)
	}
}

func TestRunStagePrependsInstruction(t *testing.T) {
	alpha := &stubClient{name: "alpha", reply: "ok"}

	r := &StageRunner{}
	topic := llm.UserMessage("the topic")
	out, err := r.RunStage(context.Background(), llm.StageCritique, []llm.Message{topic}, []llm.Client{alpha})
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	call := alpha.calls[0]
	if call[0].Role != llm.RoleSystem {
		t.Fatalf("first message role = %q, want system", call[0].Role)
	}
	if call[0].Content != StageInstruction(llm.StageCritique) {
		t.Error("system message should carry the stage instruction")
	}

	// The instruction stays in the call context only.
	for _, m := range out.Messages {
		if m.Role == llm.RoleSystem {
			t.Error("stage instruction leaked into the stage output")
		}
	}
}

func TestRunStageContextCompounds(t *testing.T) {
	alpha := &stubClient{name: "alpha", reply: "idea A"}
	beta := &stubClient{name: "beta", reply: "idea B"}

	r := &StageRunner{}
	topic := llm.UserMessage("the topic")
	_, err := r.RunStage(context.Background(), llm.StagePropose, []llm.Message{topic}, []llm.Client{alpha, beta})
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	// beta runs second and must see alpha's contribution.
	betaSaw := beta.calls[0]
	found := false
	for _, m := range betaSaw {
		if m.Author == "alpha" && m.Content == "idea A" {
			found = true
		}
	}
	if !found {
		t.Error("second participant did not see the first participant's output")
	}

	// alpha runs first and must not see beta's.
	for _, m := range alpha.calls[0] {
		if m.Author == "beta" {
			t.Error("first participant saw a later participant's output")
		}
	}
}

func TestRunStagePartialFailure(t *testing.T) {
	alpha := failing("alpha")
	beta := &stubClient{name: "beta", reply: "idea B"}

	r := &StageRunner{}
	topic := llm.UserMessage("the topic")
	out, err := r.RunStage(context.Background(), llm.StagePropose, []llm.Message{topic}, []llm.Client{alpha, beta})
	if err != nil {
		t.Fatalf("one surviving participant should not fail the stage: %v", err)
	}

	if len(out.Messages) != 2 {
		t.Fatalf("got %d messages, want 2 (placeholder + reply)", len(out.Messages))
	}
	if out.Messages[0].Content != FailureMarker {
		t.Errorf("placeholder content = %q, want the failure marker", out.Messages[0].Content)
	}
	if out.Messages[0].Author != "alpha" {
		t.Errorf("placeholder author = %q, want alpha", out.Messages[0].Author)
	}
	if strings.Contains(out.Combined, FailureMarker) {
		t.Error("failure marker should not join the combined output")
	}
}

func TestRunStageAllFail(t *testing.T) {
	alpha := failing("alpha")
	beta := failing("beta")

	r := &StageRunner{}
	topic := llm.UserMessage("the topic")
	out, err := r.RunStage(context.Background(), llm.StagePropose, []llm.Message{topic}, []llm.Client{alpha, beta})
	if !errors.Is(err, ErrAllParticipantsFailed) {
		t.Fatalf("err = %v, want ErrAllParticipantsFailed", err)
	}

	// Every participant is attempted before the determination.
	if len(alpha.calls) != 1 || len(beta.calls) != 1 {
		t.Error("all participants should be attempted before declaring all-fail")
	}
	if len(out.Messages) != 2 {
		t.Fatalf("got %d placeholders, want 2", len(out.Messages))
	}
	for _, m := range out.Messages {
		if m.Content != FailureMarker {
			t.Errorf("content = %q, want the failure marker", m.Content)
		}
	}
}

func TestRunStageOnMessage(t *testing.T) {
	alpha := &stubClient{name: "alpha", reply: "idea A"}
	beta := failing("beta")

	var seen []string
	r := &StageRunner{OnMessage: func(m llm.Message) { seen = append(seen, m.Author) }}

	topic := llm.UserMessage("the topic")
	if _, err := r.RunStage(context.Background(), llm.StagePropose, []llm.Message{topic}, []llm.Client{alpha, beta}); err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	if len(seen) != 2 || seen[0] != "alpha" || seen[1] != "beta" {
		t.Errorf("OnMessage order = %v, want [alpha beta]", seen)
	}
}
