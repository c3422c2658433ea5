package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/michaelbrown/parley/internal/llm"
)

// ExportMarkdown renders a session transcript as a markdown document.
func ExportMarkdown(sess *Session) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", sess.Topic))
	b.WriteString(fmt.Sprintf("- **Session:** %s\n", sess.ID))
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("- **Status:** %s\n", sess.Status))
	b.WriteString("\n---\n\n")

	stage := llm.StageNone
	for _, m := range sess.Messages {
		if m.Stage != stage && m.Stage != llm.StageNone {
			stage = m.Stage
			b.WriteString(fmt.Sprintf("## %s\n\n", stageHeading(stage)))
		}

		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleUser:
			b.WriteString(fmt.Sprintf("### Topic\n\n%s\n\n", m.Content))
		case llm.RoleAssistant:
			b.WriteString(fmt.Sprintf("### %s\n\n%s\n\n", m.Author, m.Content))
		}
	}

	return b.String()
}

func stageHeading(s llm.Stage) string {
	switch s {
	case llm.StagePropose:
		return "Propose"
	case llm.StageCritique:
		return "Critique & Filter"
	case llm.StageSynthesize:
		return "Synthesize"
	default:
		return string(s)
	}
}

// ExportJSON renders a session as formatted JSON.
func ExportJSON(sess *Session) ([]byte, error) {
	return json.MarshalIndent(sess, "", "  ")
}
