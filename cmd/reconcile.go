package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/store"
)

const (
	PromptWon  = "Yes, mark closed-won"
	PromptSkip = "Skip"
	PromptExit = "Exit"
)

var errExit = errors.New("exit requested")

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Walk awards that look like ours and confirm the matching quotes as won",
	Run: func(_ *cobra.Command, _ []string) {
		runReconcile()
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile() {
	ctx := context.Background()
	p := newPipeline()
	defer p.close()

	matches, err := p.store.WonMatches(ctx)
	if err != nil {
		p.logger.Fatal("listing our award matches", zap.Error(err))
	}
	if len(matches) == 0 {
		fmt.Println("nothing to reconcile")
		return
	}

	p.logger.Info("awards awaiting confirmation", zap.Int("count", len(matches)))

	confirmed := 0
	for _, m := range matches {
		err := reconcileOne(ctx, p, m, &confirmed)
		if errors.Is(err, errExit) {
			break
		}
		if err != nil {
			p.logger.Fatal("reconciling a match", zap.Error(err))
		}
	}
	fmt.Printf("confirmed %d of %d\n", confirmed, len(matches))
}

func reconcileOne(ctx context.Context, p *pipeline, m store.Match, confirmed *int) error {
	quote, err := p.store.GetQuote(ctx, m.QuoteID)
	if err != nil {
		return err
	}
	if quote == nil || (quote.Status != store.QuoteOpen && quote.Status != store.QuoteSent) {
		return nil
	}
	po, err := p.store.GetPO(ctx, m.PONumber)
	if err != nil {
		return err
	}
	if po == nil {
		return nil
	}

	fmt.Printf("\nquote %s (%s, %.2f) matches award %s by %s (%.2f, confidence %.2f)\n",
		quote.QuoteNumber, quote.Agency, quote.TotalAmount,
		po.PONumber, po.Supplier, po.GrandTotal, m.Confidence)

	prompt := promptui.Select{
		Label: "Did we win this one?",
		Items: []string{PromptWon, PromptSkip, PromptExit},
	}
	_, answer, err := prompt.Run()
	if err != nil {
		return err
	}

	switch answer {
	case PromptWon:
		moved, err := p.store.CloseQuote(ctx, quote.ID, store.QuoteClosedWon,
			fmt.Sprintf("confirmed_won:%s", po.PONumber))
		if err != nil {
			return err
		}
		if moved {
			*confirmed++
		}
	case PromptExit:
		return errExit
	}
	return nil
}
