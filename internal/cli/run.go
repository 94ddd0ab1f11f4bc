package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/strandworks/crosslink/internal/cycle"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full linking cycle",
	Long: "Runs one pass: load documents, match rules, apply references,\n" +
		"log outcomes, correlate tags, optimize the rule set, persist.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the structured report instead of the summary")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Vaults) == 0 {
		return fmt.Errorf("no vaults configured")
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runner, err := cycle.New(cfg, db)
	if err != nil {
		return err
	}

	// SIGINT asks the cycle to stop cooperatively: the in-flight write
	// finishes, then an interrupted report is emitted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Println(report.Summary())
	return nil
}
