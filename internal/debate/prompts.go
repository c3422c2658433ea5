package debate

import "github.com/michaelbrown/parley/internal/llm"

const basePrompt = `You are an AI participating in a structured collaborative debate.
Follow the instructions for your current stage carefully.`

const proposePrompt = `**Stage 1: Propose**
* Offer 1-2 core ideas related to the given topic
* Prioritize uniqueness - avoid repeating concepts already presented by others
* Be concise (1-3 sentences per idea)

Focus on contributing original, valuable ideas while being brief and clear.`

const critiquePrompt = `**Stage 2: Critique & Filter**
* Review proposals from OTHER participants only
* Identify at least one specific flaw OR suggest a concrete improvement for another's idea
* Select the most valuable candidates and explain your reasoning briefly

Focus on strengthening the strongest ideas through constructive criticism.`

const synthesizePrompt = `**Stage 3: Synthesize**
* Based on the discussion in stages 1 & 2, construct one concise, improved solution
* Integrate the strongest points and refinements identified
* Acknowledge core contributions briefly if feasible

Focus on creating one coherent, actionable final solution by combining the best
elements from the previous stages.`

const keyRules = `**Key Rules:**
* Uniqueness: Strive for distinct contributions in each stage
* Interaction: Stage 2 must engage with others' ideas
* Brevity: Concise responses are highly valued

Maintain a helpful, precise, and professional tone at all times.`

// StageInstruction returns the fixed system instruction for a stage.
func StageInstruction(stage llm.Stage) string {
	var prompt string
	switch stage {
	case llm.StagePropose:
		prompt = proposePrompt
	case llm.StageCritique:
		prompt = critiquePrompt
	case llm.StageSynthesize:
		prompt = synthesizePrompt
	default:
		return basePrompt
	}
	return basePrompt + "\n\n" + prompt + "\n\n" + keyRules
}
