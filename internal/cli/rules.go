package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/strandworks/crosslink/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the current rule set, including disabled rules",
	RunE:  runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	repo := rules.NewRepo(cfg.Rules.Path)
	set, rejected, err := repo.Load()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTRENGTH\tACTION\tENABLED\tTRIGGER")
	for _, r := range set.Rules {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%t\t%s %v\n",
			r.Name, r.Strength, r.Action, r.Enabled, r.Trigger.Mode, r.Trigger.Tags)
	}
	w.Flush()

	for _, rec := range rejected {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", rec)
	}
	return nil
}
