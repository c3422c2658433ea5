package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/parley/internal/config"
	"github.com/michaelbrown/parley/internal/debate"
	"github.com/michaelbrown/parley/internal/llm"
	"github.com/michaelbrown/parley/internal/storage"
)

var debateCmd = &cobra.Command{
	Use:   "debate [topic]",
	Short: "Run a three-stage debate cycle on a topic",
	Long: `Run the fixed Propose -> Critique & Filter -> Synthesize cycle over a topic.

With a topic argument, one cycle runs and the command exits. Without one,
an interactive loop prompts for topics until you quit.

Examples:
  parley debate "How should a small team adopt code review?"
  parley debate
  parley debate --roster panel.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDebate,
}

func init() {
	rootCmd.AddCommand(debateCmd)
}

func runDebate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	panel, err := buildPanel(cfg)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return runCycle(cmd.Context(), panel, store, args[0])
	}
	return runInteractive(cmd.Context(), panel, store)
}

func runCycle(ctx context.Context, panel debate.Panel, store storage.Store, topic string) error {
	cycle := debate.New(panel, store)

	stage := llm.StageNone
	cycle.OnMessage(func(m llm.Message) {
		if m.Stage != stage {
			stage = m.Stage
			fmt.Printf("\n\033[1m=== %s ===\033[0m\n", strings.ToUpper(string(stage)))
		}
		if m.Content == debate.FailureMarker {
			fmt.Printf("\n\033[31m%s> (failed)\033[0m\n", m.Author)
			return
		}
		fmt.Printf("\n\033[32m%s>\033[0m %s\n", m.Author, m.Content)
	})

	sess, err := cycle.Run(ctx, topic)

	var aborted *debate.StageAbortedError
	switch {
	case err == nil:
		fmt.Printf("\nDebate complete. Session %s saved (%d messages).\n", sess.ID, len(sess.Messages))
		return nil
	case errors.As(err, &aborted):
		fmt.Printf("\n\033[31mDebate aborted: every participant failed in the %s stage.\033[0m\n", aborted.Stage)
		fmt.Printf("Partial session %s saved for review.\n", sess.ID)
		return nil
	default:
		return err
	}
}

func runInteractive(ctx context.Context, panel debate.Panel, store storage.Store) error {
	fmt.Println("Parley - Multi-model debate")
	fmt.Println("Stages: Propose -> Critique & Filter -> Synthesize")
	fmt.Println("Enter a debate topic, or 'quit' to exit.")

	rl, err := readline.New("\033[36mtopic>\033[0m ")
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" || input == "q" {
			fmt.Println("Goodbye!")
			return nil
		}

		if err := runCycle(ctx, panel, store, input); err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n", err)
		}
		fmt.Println()
	}
}
