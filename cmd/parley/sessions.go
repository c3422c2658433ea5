package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/parley/internal/config"
	"github.com/michaelbrown/parley/internal/debate"
	"github.com/michaelbrown/parley/internal/llm"
	"github.com/michaelbrown/parley/internal/storage"
)

var (
	keywordFlag  string
	fromFlag     string
	toFlag       string
	limitFlag    int
	snapshotFlag string
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "Manage debate history",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE:  runSessionsList,
}

var sessionsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search sessions by keyword and/or date range",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session transcript (or one of its snapshots)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsSnapshotCmd = &cobra.Command{
	Use:   "snapshot <session-id>",
	Short: "Take an immutable snapshot of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsSnapshot,
}

var sessionsSnapshotsCmd = &cobra.Command{
	Use:   "snapshots <session-id>",
	Short: "List a session's snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsSnapshots,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and all its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsExport,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsSearchCmd, sessionsShowCmd,
		sessionsSnapshotCmd, sessionsSnapshotsCmd, sessionsDeleteCmd, sessionsExportCmd)

	for _, c := range []*cobra.Command{sessionsListCmd, sessionsSearchCmd} {
		c.Flags().StringVar(&keywordFlag, "keyword", "", "Keyword to match in topic or message content")
		c.Flags().StringVar(&fromFlag, "from", "", "Start date (YYYY-MM-DD)")
		c.Flags().StringVar(&toFlag, "to", "", "End date (YYYY-MM-DD)")
		c.Flags().IntVar(&limitFlag, "limit", 20, "Max sessions to show")
	}

	sessionsShowCmd.Flags().StringVar(&snapshotFlag, "snapshot", "", "Show this snapshot instead of the live session")

	sessionsExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	sessionsDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

func openConfiguredStore() (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return openStore(cfg)
}

func buildQuery() (storage.Query, error) {
	q := storage.Query{Keyword: keywordFlag, Limit: limitFlag}
	if fromFlag != "" {
		t, err := time.Parse("2006-01-02", fromFlag)
		if err != nil {
			return q, fmt.Errorf("invalid --from date %q, want YYYY-MM-DD", fromFlag)
		}
		q.Start = t
	}
	if toFlag != "" {
		t, err := time.Parse("2006-01-02", toFlag)
		if err != nil {
			return q, fmt.Errorf("invalid --to date %q, want YYYY-MM-DD", toFlag)
		}
		q.End = t
	}
	return q, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := buildQuery()
	if err != nil {
		return err
	}

	summaries, err := store.Search(context.Background(), q)
	if err != nil {
		return err
	}

	if len(summaries) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Printf("%-22s %-10s %-44s %6s  %s\n", "ID", "STATUS", "TOPIC", "MSGS", "CREATED")
	fmt.Println(strings.Repeat("─", 100))

	for _, s := range summaries {
		topic := s.Topic
		if len(topic) > 42 {
			topic = topic[:42] + ".."
		}
		if topic == "" {
			topic = "(no topic)"
		}

		fmt.Printf("%-22s %-10s %-44s %6d  %s\n",
			s.ID, s.Status, topic, s.MessageCount, timeAgo(s.CreatedAt))
	}

	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var sess *storage.Session
	if snapshotFlag != "" {
		sess, err = store.LoadSnapshot(ctx, args[0], snapshotFlag)
	} else {
		sess, err = store.Load(ctx, args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("Session:  %s\n", sess.ID)
	if snapshotFlag != "" {
		fmt.Printf("Snapshot: %s\n", snapshotFlag)
	}
	fmt.Printf("Topic:    %s\n", sess.Topic)
	fmt.Printf("Status:   %s\n", sess.Status)
	fmt.Printf("Created:  %s\n", sess.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Messages: %d\n", len(sess.Messages))
	fmt.Println(strings.Repeat("─", 60))

	stage := llm.StageNone
	for _, m := range sess.Messages {
		if m.Stage != stage && m.Stage != llm.StageNone {
			stage = m.Stage
			fmt.Printf("\n\033[1m=== %s ===\033[0m\n", strings.ToUpper(string(stage)))
		}

		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleUser:
			fmt.Printf("\n\033[36mtopic>\033[0m %s\n", m.Content)
		case llm.RoleAssistant:
			if m.Content == debate.FailureMarker {
				fmt.Printf("\n\033[31m%s> (failed)\033[0m\n", m.Author)
			} else {
				fmt.Printf("\n\033[32m%s>\033[0m %s\n", m.Author, m.Content)
			}
		}
	}

	return nil
}

func runSessionsSnapshot(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snapID, err := store.Snapshot(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot %s created for session %s\n", snapID, args[0])
	return nil
}

func runSessionsSnapshots(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.ListSnapshots(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No snapshots.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sess, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		topic := sess.Topic
		if topic == "" {
			topic = "(no topic)"
		}
		fmt.Printf("Delete session %s - %q and all its snapshots? [y/N] ", sess.ID, truncate(topic, 60))
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", sess.ID)
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}

	var output string
	switch exportFormat {
	case "json":
		data, err := storage.ExportJSON(sess)
		if err != nil {
			return err
		}
		output = string(data)
	default:
		output = storage.ExportMarkdown(sess)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, []byte(output), 0o644)
	}

	fmt.Print(output)
	return nil
}
