package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strandworks/crosslink/internal/store"
)

var markCmd = &cobra.Command{
	Use:   "mark <retained|reversed> <rule> <source> <target>",
	Short: "Record whether an applied link was kept or undone",
	Long: "Marks the most recent applied outcome for (rule, source, target).\n" +
		"Reversals feed rule demotion; unmarked links become retained after\n" +
		"the retention window.",
	Args: cobra.ExactArgs(4),
	RunE: runMark,
}

func runMark(cmd *cobra.Command, args []string) error {
	status, rule, source, target := args[0], args[1], args[2], args[3]
	if status != store.StatusRetained && status != store.StatusReversed {
		return fmt.Errorf("status must be retained or reversed, got %q", status)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	marked, err := db.MarkOutcome(rule, source, target, status)
	if err != nil {
		return err
	}
	if !marked {
		return fmt.Errorf("no applied outcome for rule %q linking %s -> %s", rule, source, target)
	}
	fmt.Printf("marked %s: %s -> %s (%s)\n", status, source, target, rule)
	return nil
}
