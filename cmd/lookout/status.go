package main

import (
	"fmt"

	"github.com/spf13/cobra"

	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/output"
	"github.com/musher-dev/lookout/internal/readiness"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether predictions can be served",
		Long: `Compose a readiness verdict from three signals collected in parallel:
connectivity to the backend, the backend's own health report, and one real
prediction request (the canary).

The system is operational when the backend answers and reports itself healthy.
It can serve queries when the canary prediction also succeeds. The command
exits non-zero when the system is not operational.`,
		Example: `  lookout status
  lookout status --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			rt := newRuntime(ctx)

			spin := out.Spinner("Checking backend readiness")
			spin.Start()

			verdict := rt.readiness(rt.prober()).Check(ctx)

			spin.Stop()

			if out.JSON {
				if err := out.PrintJSON(verdict); err != nil {
					return fmt.Errorf("print status json: %w", err)
				}
			} else {
				renderVerdict(out, rt.client.BaseURL(), verdict)
			}

			if !verdict.Operational {
				return clierrors.NotOperational(verdict.ErrorMessage)
			}

			return nil
		},
	}
}

func renderVerdict(out *output.Writer, baseURL string, verdict readiness.Verdict) {
	switch {
	case verdict.Operational && verdict.CanQuery:
		out.Success("Operational: predictions are being served")
	case verdict.Operational:
		out.Warning("Operational, but predictions are failing")
	default:
		out.Failure("Not operational")
	}

	health := string(verdict.Health.Status)
	if verdict.Health.Version != "" {
		health += " (v" + verdict.Health.Version + ")"
	}

	pairs := [][2]string{
		{"Backend", baseURL},
		{"Health", health},
		{"Can query", yesNo(verdict.CanQuery)},
		{"Checked", verdict.CheckedAt.Format("15:04:05")},
	}

	if verdict.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Reason", verdict.ErrorMessage})
	}

	out.Println()
	out.KeyValues(pairs)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
