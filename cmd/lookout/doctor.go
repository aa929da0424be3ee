package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/doctor"
	"github.com/musher-dev/lookout/internal/output"
	"github.com/musher-dev/lookout/internal/stream"
)

// DoctorReport represents doctor results for JSON output.
type DoctorReport struct {
	Results  []doctor.Result `json:"results"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Warnings int             `json:"warnings"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify configuration and connectivity issues.

Checks performed:
  - Configuration file and backend URL
  - API connectivity and response time
  - Authentication status and credential source
  - Backend health and minimum supported version
  - Prediction engine (one canary prediction)
  - Push channel handshake
  - CLI version`,
		Example: `  lookout doctor
  lookout doctor --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			rt := newRuntime(ctx)
			prober := rt.prober()

			runner := doctor.New(doctor.Deps{
				Backend:   rt.client,
				Health:    prober,
				Readiness: rt.readiness(prober),
				Dialer:    stream.NewWebSocketDialer(),
				StreamURL: rt.streamURL(),

				LatestRelease: cachedLatestRelease,
			})

			spin := out.Spinner("Running diagnostics")
			spin.Start()

			results := runner.Run(ctx)

			spin.Stop()

			passed, failed, warnings := doctor.Summary(results)

			if out.JSON {
				if err := out.PrintJSON(DoctorReport{
					Results:  results,
					Passed:   passed,
					Failed:   failed,
					Warnings: warnings,
				}); err != nil {
					return fmt.Errorf("print doctor json: %w", err)
				}

				return nil
			}

			out.Println("Lookout Doctor")
			out.Println("==============")
			out.Println()

			doctor.RenderResults(results, out.Success, out.Warning, out.Failure, out.Muted)

			out.Println()
			out.Print("%d passed", passed)

			if failed > 0 {
				out.Print(", %d failed", failed)
			}

			if warnings > 0 {
				out.Print(", %d warning(s)", warnings)
			}

			out.Println()

			return nil
		},
	}
}
