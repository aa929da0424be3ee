package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/client"
	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/output"
	"github.com/musher-dev/lookout/internal/prompt"
)

var feedbackActions = []string{"LONG", "SHORT", "HOLD", "BUY", "SELL"}

func newTradeCmd() *cobra.Command {
	var (
		req client.TradeRequest
		yes bool
	)

	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Confirm trade parameters with the backend",
		Long: `Submit stop loss, profit target and amount for confirmation.

Trade confirmation is not idempotent. It is retried automatically only when
no response was received at all, and never when the backend rate limits it.
Interactive sessions are asked to confirm first; pass --yes to skip.`,
		Example: `  lookout trade --stop-loss 2 --target 5 --amount 1000
  lookout trade --stop-loss 2 --target 5 --amount 1000 --risk-mode --yes`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.StopLoss <= 0 || req.TargetProfit <= 0 || req.Amount <= 0 {
				return &clierrors.CLIError{
					Message: "--stop-loss, --target and --amount must be positive",
					Hint:    "Run 'lookout trade --help' for usage",
					Code:    clierrors.ExitUsage,
				}
			}

			ctx := cmd.Context()
			out := output.FromContext(ctx)

			if !yes {
				prompter := prompt.New(out)
				if !prompter.CanPrompt() {
					return &clierrors.CLIError{
						Message: "Confirmation required",
						Hint:    "Pass --yes to confirm non-interactively",
						Code:    clierrors.ExitUsage,
					}
				}

				ok, err := prompter.Confirm(fmt.Sprintf(
					"Confirm trade of %.2f (stop loss %.2f%%, target %.2f%%)?",
					req.Amount, req.StopLoss, req.TargetProfit,
				), false)
				if err != nil {
					if prompt.IsCanceled(err) {
						return nil
					}

					return fmt.Errorf("read confirmation: %w", err)
				}

				if !ok {
					out.Muted("Trade not submitted")
					return nil
				}
			}

			rt := newRuntime(ctx)

			spin := out.Spinner("Submitting trade")
			spin.Start()

			var confirmation *client.TradeConfirmation

			err := rt.call(cmd, "confirm trade", false, func() error {
				var callErr error
				confirmation, callErr = rt.client.ConfirmTrade(ctx, &req)

				return callErr
			})

			spin.Stop()

			if err != nil {
				return err
			}

			if out.JSON {
				if err := out.PrintJSON(confirmation); err != nil {
					return fmt.Errorf("print trade json: %w", err)
				}

				return nil
			}

			if !confirmation.Success {
				return &clierrors.CLIError{
					Message: "Trade rejected: " + confirmation.Message,
					Code:    clierrors.ExitGeneral,
				}
			}

			out.Success("%s", confirmation.Message)

			if confirmation.TradeID != "" {
				out.Muted("Trade ID: %s", confirmation.TradeID)
			}

			return nil
		},
	}

	cmd.Flags().Float64Var(&req.StopLoss, "stop-loss", 0, "Stop loss percentage")
	cmd.Flags().Float64Var(&req.TargetProfit, "target", 0, "Target profit percentage")
	cmd.Flags().Float64Var(&req.Amount, "amount", 0, "Amount to trade")
	cmd.Flags().BoolVar(&req.RiskMode, "risk-mode", false, "Enable aggressive risk mode")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newFeedbackCmd() *cobra.Command {
	var (
		action       string
		message      string
		actualReturn float64
	)

	cmd := &cobra.Command{
		Use:   "feedback SYMBOL FEEDBACK",
		Short: "Tell the engine whether a prediction was right",
		Long: `Report how a prediction played out so the engine can learn from it.

FEEDBACK is "correct", "incorrect", or free text that the backend interprets.
--action is the action that was predicted (LONG, SHORT, HOLD, BUY or SELL).`,
		Example: `  lookout feedback AAPL correct --action LONG
  lookout feedback AAPL "reversed after the open" --action BUY --actual-return -1.8`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := requireSymbols(cmd, args[:1])
			if err != nil {
				return err
			}

			normalized := strings.ToUpper(strings.TrimSpace(action))
			if !slices.Contains(feedbackActions, normalized) {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Invalid action %q", action),
					Hint:    "Valid options: " + strings.Join(feedbackActions, ", "),
					Code:    clierrors.ExitUsage,
				}
			}

			feedback := strings.TrimSpace(args[1])
			if feedback == "" {
				return &clierrors.CLIError{
					Message: "Feedback cannot be empty",
					Code:    clierrors.ExitUsage,
				}
			}

			req := &client.FeedbackRequest{
				Symbol:          symbols[0],
				PredictedAction: normalized,
				UserFeedback:    feedback,
				Message:         message,
			}

			if cmd.Flags().Changed("actual-return") {
				req.ActualReturn = &actualReturn
			}

			ctx := cmd.Context()
			out := output.FromContext(ctx)
			rt := newRuntime(ctx)

			var result map[string]any

			err = rt.call(cmd, "send feedback", false, func() error {
				var callErr error
				result, callErr = rt.client.SendFeedback(ctx, req)

				return callErr
			})
			if err != nil {
				return err
			}

			if out.JSON {
				if err := out.PrintJSON(result); err != nil {
					return fmt.Errorf("print feedback json: %w", err)
				}

				return nil
			}

			out.Success("Feedback recorded for %s", req.Symbol)

			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Predicted action: "+strings.Join(feedbackActions, ", "))
	cmd.Flags().StringVar(&message, "message", "", "Optional note stored with the feedback")
	cmd.Flags().Float64Var(&actualReturn, "actual-return", 0, "Realized return in percent")

	_ = cmd.MarkFlagRequired("action")

	return cmd
}
