package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/client"
	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/output"
)

const defaultMinConfidence = 0.3

// riskFlags are the optional risk parameters shared by the prediction tools.
type riskFlags struct {
	stopLossPct      float64
	capitalRiskPct   float64
	drawdownLimitPct float64
}

func (r *riskFlags) register(cmd *cobra.Command, drawdown bool) {
	cmd.Flags().Float64Var(&r.stopLossPct, "stop-loss", 0, "Stop loss percentage (0.1-50)")
	cmd.Flags().Float64Var(&r.capitalRiskPct, "capital-risk", 0, "Capital at risk percentage (0.1-100)")

	if drawdown {
		cmd.Flags().Float64Var(&r.drawdownLimitPct, "drawdown-limit", 0, "Drawdown limit percentage (0.1-100)")
	}
}

func (r *riskFlags) validate() error {
	checks := []struct {
		flag  string
		value float64
		max   float64
	}{
		{"--stop-loss", r.stopLossPct, 50},
		{"--capital-risk", r.capitalRiskPct, 100},
		{"--drawdown-limit", r.drawdownLimitPct, 100},
	}

	for _, c := range checks {
		if c.value != 0 && (c.value < 0.1 || c.value > c.max) {
			return &clierrors.CLIError{
				Message: fmt.Sprintf("%s must be between 0.1 and %g", c.flag, c.max),
				Code:    clierrors.ExitUsage,
			}
		}
	}

	return nil
}

func newPredictCmd() *cobra.Command {
	var (
		horizon     string
		riskProfile string
		wait        bool
		risk        riskFlags
	)

	cmd := &cobra.Command{
		Use:   "predict SYMBOL...",
		Short: "Request predictions for one or more symbols",
		Long: `Ask the prediction engine for a direction and confidence per symbol.

Predictions can take a while. When the backend has not answered within the
client timeout the request keeps running server-side; lookout reports it as
still processing and exits successfully. Re-run the command later to fetch
the result.

With --wait, a rate-limited request is retried once after the delay the
backend asks for.`,
		Example: `  lookout predict AAPL
  lookout predict AAPL MSFT --horizon short
  lookout predict AAPL --risk-profile low --stop-loss 2 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := requireSymbols(cmd, args)
			if err != nil {
				return err
			}

			h, err := validateHorizon(horizon)
			if err != nil {
				return err
			}

			profile, err := validateRiskProfile(riskProfile)
			if err != nil {
				return err
			}

			if err := risk.validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			out := output.FromContext(ctx)
			rt := newRuntime(ctx)

			req := &client.PredictRequest{
				Symbols:          symbols,
				Horizon:          h,
				RiskProfile:      profile,
				StopLossPct:      risk.stopLossPct,
				CapitalRiskPct:   risk.capitalRiskPct,
				DrawdownLimitPct: risk.drawdownLimitPct,
			}

			spin := out.Spinner(fmt.Sprintf("Predicting %s (%s)", strings.Join(symbols, ", "), h))
			spin.Start()

			var predictions []client.Prediction

			err = rt.call(cmd, "request predictions", wait, func() error {
				var callErr error
				predictions, callErr = rt.client.Predict(ctx, req)

				return callErr
			})

			spin.Stop()

			if err != nil {
				return err
			}

			if out.JSON {
				if err := out.PrintJSON(predictions); err != nil {
					return fmt.Errorf("print predictions json: %w", err)
				}

				return nil
			}

			if len(predictions) == 0 {
				out.Muted("No predictions returned")
				return nil
			}

			table := output.NewTable("SYMBOL", "DIRECTION", "CONFIDENCE", "ENTRY", "TIMEFRAME").AlignRight(2, 3)
			for _, p := range predictions {
				table.Row(p.Symbol, colorDirection(out, p.Direction), formatConfidence(p.Confidence), formatPrice(p.EntryPrice), p.Timeframe)
			}

			out.Table(table)

			return nil
		},
	}

	cmd.Flags().StringVar(&horizon, "horizon", "intraday", "Prediction horizon: "+strings.Join(client.Horizons, ", "))
	cmd.Flags().StringVar(&riskProfile, "risk-profile", "", "Risk profile: low, moderate, high")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait and retry once when rate limited")
	risk.register(cmd, true)

	return cmd
}

func newScanCmd() *cobra.Command {
	var (
		horizon       string
		minConfidence float64
		wait          bool
		risk          riskFlags
	)

	cmd := &cobra.Command{
		Use:   "scan SYMBOL...",
		Short: "Rank symbols by predicted opportunity",
		Long: `Scan a watchlist and rank the symbols the engine is most confident about.

Symbols may be separated by spaces or commas. Results below --min-confidence
are filtered out by the backend.`,
		Example: `  lookout scan AAPL MSFT NVDA
  lookout scan AAPL,MSFT,NVDA --horizon long --min-confidence 0.6`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := requireSymbols(cmd, args)
			if err != nil {
				return err
			}

			h, err := validateHorizon(horizon)
			if err != nil {
				return err
			}

			if minConfidence < 0 || minConfidence > 1 {
				return &clierrors.CLIError{
					Message: "--min-confidence must be between 0.0 and 1.0",
					Code:    clierrors.ExitUsage,
				}
			}

			if err := risk.validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			out := output.FromContext(ctx)
			rt := newRuntime(ctx)

			req := &client.ScanRequest{
				Symbols:        symbols,
				Horizon:        h,
				MinConfidence:  minConfidence,
				StopLossPct:    risk.stopLossPct,
				CapitalRiskPct: risk.capitalRiskPct,
			}

			spin := out.Spinner(fmt.Sprintf("Scanning %d symbol(s)", len(symbols)))
			spin.Start()

			var results []client.ScanResult

			err = rt.call(cmd, "scan symbols", wait, func() error {
				var callErr error
				results, callErr = rt.client.ScanAll(ctx, req)

				return callErr
			})

			spin.Stop()

			if err != nil {
				return err
			}

			if out.JSON {
				if err := out.PrintJSON(results); err != nil {
					return fmt.Errorf("print scan json: %w", err)
				}

				return nil
			}

			if len(results) == 0 {
				out.Muted("No symbols met the confidence threshold")
				return nil
			}

			table := output.NewTable("SYMBOL", "PRICE", "CHANGE", "VOLUME", "DIRECTION", "CONFIDENCE").AlignRight(1, 2, 3, 5)
			for _, r := range results {
				table.Row(
					r.Symbol,
					formatPrice(r.Price),
					fmt.Sprintf("%+.2f%%", r.ChangePercent),
					r.Volume,
					colorDirection(out, r.Direction),
					formatConfidence(r.Confidence),
				)
			}

			out.Table(table)

			return nil
		},
	}

	cmd.Flags().StringVar(&horizon, "horizon", "intraday", "Prediction horizon: "+strings.Join(client.Horizons, ", "))
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", defaultMinConfidence, "Minimum confidence (0.0-1.0)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait and retry once when rate limited")
	risk.register(cmd, false)

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		horizons []string
		wait     bool
		risk     riskFlags
	)

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Analyze one symbol across horizons",
		Long: `Fetch price history and indicators for one symbol on up to three horizons
and summarize the most recent bar of each.`,
		Example: `  lookout analyze AAPL
  lookout analyze AAPL --horizons intraday,short,long --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := requireSymbols(cmd, args)
			if err != nil {
				return err
			}

			requested := make([]string, 0, len(horizons))
			for _, raw := range horizons {
				h, err := validateHorizon(raw)
				if err != nil {
					return err
				}

				requested = append(requested, h)
			}

			if err := risk.validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			out := output.FromContext(ctx)
			rt := newRuntime(ctx)

			req := &client.AnalyzeRequest{
				Symbol:           symbols[0],
				Horizons:         requested,
				StopLossPct:      risk.stopLossPct,
				CapitalRiskPct:   risk.capitalRiskPct,
				DrawdownLimitPct: risk.drawdownLimitPct,
			}

			spin := out.Spinner("Analyzing " + req.Symbol)
			spin.Start()

			var analysis *client.Analysis

			err = rt.call(cmd, "analyze symbol", wait, func() error {
				var callErr error
				analysis, callErr = rt.client.Analyze(ctx, req)

				return callErr
			})

			spin.Stop()

			if err != nil {
				return err
			}

			if out.JSON {
				if err := out.PrintJSON(analysis); err != nil {
					return fmt.Errorf("print analysis json: %w", err)
				}

				return nil
			}

			renderAnalysis(out, analysis)

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&horizons, "horizons", []string{"intraday"}, "Horizons to analyze: "+strings.Join(client.Horizons, ", "))
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait and retry once when rate limited")
	risk.register(cmd, true)

	return cmd
}

func renderAnalysis(out *output.Writer, analysis *client.Analysis) {
	out.Print("%s\n\n", analysis.Symbol)

	names := make([]string, 0, len(analysis.Horizons))
	for name := range analysis.Horizons {
		names = append(names, name)
	}

	sort.Strings(names)

	table := output.NewTable("HORIZON", "BARS", "LAST", "OPEN", "HIGH", "LOW", "CLOSE", "INDICATORS").AlignRight(1, 3, 4, 5, 6, 7)

	for _, name := range names {
		h := analysis.Horizons[name]
		if len(h.PriceData) == 0 {
			table.Row(name, "0", "-", "-", "-", "-", "-", fmt.Sprint(len(h.Indicators)))
			continue
		}

		last := h.PriceData[len(h.PriceData)-1]
		table.Row(
			name,
			fmt.Sprint(len(h.PriceData)),
			last.Time,
			formatPrice(last.Open),
			formatPrice(last.High),
			formatPrice(last.Low),
			formatPrice(last.Close),
			fmt.Sprint(len(h.Indicators)),
		)
	}

	out.Table(table)
}

func validateRiskProfile(profile string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(profile))
	switch p {
	case "", "low", "moderate", "high":
		return p, nil
	default:
		return "", &clierrors.CLIError{
			Message: fmt.Sprintf("Invalid risk profile %q", profile),
			Hint:    "Valid options: low, moderate, high",
			Code:    clierrors.ExitUsage,
		}
	}
}

func colorDirection(out *output.Writer, direction string) string {
	switch strings.ToUpper(direction) {
	case "LONG", "BUY", "UP":
		return out.Colorize(output.ToneSuccess, direction)
	case "SHORT", "SELL", "DOWN":
		return out.Colorize(output.ToneFailure, direction)
	case "":
		return "-"
	default:
		return direction
	}
}

func formatConfidence(c float64) string {
	if c == 0 {
		return "-"
	}

	return fmt.Sprintf("%.0f%%", c*100)
}

func formatPrice(p float64) string {
	if p == 0 {
		return "-"
	}

	return fmt.Sprintf("%.2f", p)
}
