package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/store"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print the ranked business recommendations",
	Run: func(cmd *cobra.Command, _ []string) {
		runRecommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().Bool("gaps", false, "also list the individual gap items")
	recommendCmd.Flags().Bool("win-backs", false, "also list the individual win-back items")
	recommendCmd.Flags().IntP("limit", "n", 25, "item list limit")
}

func runRecommend(cmd *cobra.Command) {
	ctx := context.Background()
	p := newPipeline()
	defer p.close()

	recs, err := p.recommender.Recommendations(ctx)
	if err != nil {
		p.logger.Fatal("building recommendations", zap.Error(err))
	}
	if len(recs) == 0 {
		fmt.Println("no recommendations yet; pull some data first")
		return
	}

	for i, r := range recs {
		tag := color.YellowString("[%s]", r.Priority)
		if r.Priority == "P0" {
			tag = color.New(color.FgRed, color.Bold).Sprintf("[%s]", r.Priority)
		}
		fmt.Printf("%2d. %s %s (est. %s)\n", i+1, tag, r.Title, r.EstimatedValue.StringFixed(2))
		fmt.Printf("      %s\n", r.Detail)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if gaps, _ := cmd.Flags().GetBool("gaps"); gaps {
		items, err := p.recommender.GapItems(ctx, limit)
		if err != nil {
			p.logger.Fatal("listing gap items", zap.Error(err))
		}
		color.Cyan("\ngap items (bought by agencies, not in our catalog):")
		printItems(items)
	}
	if winBacks, _ := cmd.Flags().GetBool("win-backs"); winBacks {
		items, err := p.recommender.WinBackItems(ctx, limit)
		if err != nil {
			p.logger.Fatal("listing win-back items", zap.Error(err))
		}
		color.Cyan("\nwin-back items (we carry these, competitors won them):")
		printItems(items)
	}
}

func printItems(items []store.OpportunityItem) {
	for _, it := range items {
		fmt.Printf("  %-12s %9.2f  %s  (%s, %s)\n",
			it.Category, it.LineTotal, it.Description, it.Supplier, it.AgencyCode)
	}
}
