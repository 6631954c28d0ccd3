package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/pull"
	"github.com/reytech/scprs-intel/internal/store"
)

var pullCmd = &cobra.Command{
	Use:   "pull [agency]",
	Short: "Pull recent awards for one agency from the procurement portal",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runPull(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)

	pullCmd.Flags().StringP("priority", "p", "all", "search plan priority cap (P0, P1, P2 or all)")
	pullCmd.Flags().Bool("scan", false, "run a matching scan after the pull")
}

func runPull(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	p := newPipeline()
	defer p.close()

	agency := "CCHCS"
	if len(args) == 1 {
		agency = args[0]
	}
	priority, _ := cmd.Flags().GetString("priority")

	p.logger.Info("starting the pull",
		zap.String("agency", agency),
		zap.String("priority", priority),
	)

	job, err := p.runner.Run(ctx, agency, priority)
	if errors.Is(err, pull.ErrPullInProgress) {
		p.logger.Fatal("a pull is already running", zap.String("hint", "poll GET /api/pull/status on the server or wait for it to finish"))
	}
	if err != nil {
		p.logger.Fatal("running the pull", zap.Error(err))
	}

	if job.Status != store.PullDone {
		color.Red("pull %s: %s", job.Status, job.Summary)
		return
	}

	color.Green("pull done for %s", agency)
	fmt.Printf("  terms searched:  %d\n", job.Terms)
	fmt.Printf("  new POs:         %d\n", job.NewPOs)
	fmt.Printf("  new line items:  %d\n", job.NewLines)
	fmt.Printf("  price rows:      %d\n", job.PriceRows)
	if job.Errors > 0 {
		color.Yellow("  errors:          %d (see pull log)", job.Errors)
	}

	if scan, _ := cmd.Flags().GetBool("scan"); scan {
		report, err := p.matcher.Scan(ctx)
		if err != nil {
			p.logger.Fatal("running the matching scan", zap.Error(err))
		}
		printScanReport(report)
	}
}
