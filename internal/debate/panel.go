package debate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/michaelbrown/parley/internal/llm"
)

// Panel holds the ordered participant list for each stage. The same models
// usually sit in every stage, but per-stage subsets and orderings are
// supported.
type Panel struct {
	Propose    []llm.Client
	Critique   []llm.Client
	Synthesize []llm.Client
}

// Participants returns the roster for a stage.
func (p Panel) Participants(stage llm.Stage) []llm.Client {
	switch stage {
	case llm.StagePropose:
		return p.Propose
	case llm.StageCritique:
		return p.Critique
	case llm.StageSynthesize:
		return p.Synthesize
	default:
		return nil
	}
}

// Roster names which configured models act in each stage. An empty stage
// list means all models in configured order.
type Roster struct {
	Propose    []string `yaml:"propose" mapstructure:"propose"`
	Critique   []string `yaml:"critique" mapstructure:"critique"`
	Synthesize []string `yaml:"synthesize" mapstructure:"synthesize"`
}

// LoadRoster reads a per-stage roster from a YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	return &r, nil
}

// BuildPanel resolves a roster against the configured clients. A nil roster
// seats every client in every stage.
func BuildPanel(clients []llm.Client, roster *Roster) (Panel, error) {
	if len(clients) == 0 {
		return Panel{}, fmt.Errorf("no models configured")
	}
	if roster == nil {
		return Panel{Propose: clients, Critique: clients, Synthesize: clients}, nil
	}

	byName := make(map[string]llm.Client, len(clients))
	for _, c := range clients {
		byName[c.Name()] = c
	}

	resolve := func(stage string, names []string) ([]llm.Client, error) {
		if len(names) == 0 {
			return clients, nil
		}
		seats := make([]llm.Client, 0, len(names))
		for _, name := range names {
			c, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("%s roster: unknown model %q", stage, name)
			}
			seats = append(seats, c)
		}
		return seats, nil
	}

	var p Panel
	var err error
	if p.Propose, err = resolve("propose", roster.Propose); err != nil {
		return Panel{}, err
	}
	if p.Critique, err = resolve("critique", roster.Critique); err != nil {
		return Panel{}, err
	}
	if p.Synthesize, err = resolve("synthesize", roster.Synthesize); err != nil {
		return Panel{}, err
	}
	return p, nil
}
