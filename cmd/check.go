package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/monitor"
)

// alwaysOpen bypasses the business-hours gate.
type alwaysOpen struct{}

func (alwaysOpen) ShouldRun(time.Time) bool { return true }
func (alwaysOpen) Reason(time.Time) string  { return "" }

func newCheckCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			var gate monitor.Gate
			if force {
				gate = alwaysOpen{}
			}
			svc, err := buildService(cmd.Context(), rt.cfg, rt.logger, gate)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.monitor.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			rt.logger.Info("check complete",
				zap.Bool("skipped", res.Skipped),
				zap.Int("found", res.Found),
				zap.Int("published", res.Published),
				zap.Int("duplicates", res.Duplicates),
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore the weekday and business-hours window")
	return cmd
}
