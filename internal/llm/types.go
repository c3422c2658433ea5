package llm

import "time"

// Role represents a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Stage identifies which debate stage produced a message.
type Stage string

const (
	StageNone       Stage = "none"
	StagePropose    Stage = "propose"
	StageCritique   Stage = "critique"
	StageSynthesize Stage = "synthesize"
)

// Message is a single entry in a debate transcript. Messages are immutable
// once created; transcripts only ever grow by appending.
type Message struct {
	Role      Role      `json:"role"`
	Author    string    `json:"author"`
	Stage     Stage     `json:"stage"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ModelDescriptor is the immutable configuration for one completion endpoint.
type ModelDescriptor struct {
	Name                string // display name, also the message author
	Model               string // model identifier sent to the API
	APIKey              string
	BaseURL             string // empty means the provider default
	MaxCompletionTokens int64
	ExtraBody           map[string]any // merged verbatim into the request body
	RequestTimeout      time.Duration
}

// Helper constructors

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Author: "system", Stage: StageNone, Content: content, Timestamp: time.Now().UTC()}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Author: "user", Stage: StageNone, Content: content, Timestamp: time.Now().UTC()}
}

func ModelMessage(author string, stage Stage, content string) Message {
	return Message{Role: RoleAssistant, Author: author, Stage: stage, Content: content, Timestamp: time.Now().UTC()}
}
