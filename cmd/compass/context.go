package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/compass/internal/fetch"
	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/types"
	"github.com/hyperengineering/compass/internal/validation"
)

var (
	contextClientID string
	contextAudience string
	contextWindow   time.Duration
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Inspect the context documents sent for generation",
}

var contextRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the context document a client or coach conversation would receive",
	Args:  cobra.NoArgs,
	RunE:  runContextRender,
}

func init() {
	contextRenderCmd.Flags().StringVar(&contextClientID, "client", "", "Client ID (required)")
	contextRenderCmd.Flags().StringVar(&contextAudience, "audience", "client", "Audience tier: client or coach")
	contextRenderCmd.Flags().DurationVar(&contextWindow, "window", 0, "Trailing window (default: the configured chat window)")
	contextRenderCmd.MarkFlagRequired("client")

	contextCmd.AddCommand(contextRenderCmd)
}

func runContextRender(cmd *cobra.Command, args []string) error {
	if err := validation.ValidateUUID("client", contextClientID); err != nil {
		return fmt.Errorf("invalid --client: %s", err.Message)
	}
	audience, err := redaction.ParseAudience(contextAudience)
	if err != nil {
		return err
	}

	p, err := openCLIPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	window := contextWindow
	if window <= 0 {
		window = time.Duration(p.cfg.Context.ChatWindow)
	}
	end := time.Now().UTC()
	policy := redaction.Tier(audience)

	rs := p.fetcher.FetchContext(cmd.Context(), fetch.Query{
		ClientID: contextClientID,
		Window:   types.Window{Start: end.Add(-window), End: end},
		Policy:   policy,
	})

	fmt.Fprint(cmd.OutOrStdout(), p.renderer.Render(rs, policy))
	return nil
}
