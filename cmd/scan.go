package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/matching"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Match open quotes against pulled awards and settle outcomes",
	Run: func(_ *cobra.Command, _ []string) {
		runScan()
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan() {
	p := newPipeline()
	defer p.close()

	report, err := p.matcher.Scan(context.Background())
	if err != nil {
		p.logger.Fatal("running the matching scan", zap.Error(err))
	}
	printScanReport(report)
}

func printScanReport(report *matching.Report) {
	fmt.Printf("quotes checked: %d, matches: %d, auto-closed: %d\n",
		report.Checked, report.Matched, report.AutoClosed)
	for _, action := range report.Actions {
		color.Yellow("  %s", action)
	}
}
