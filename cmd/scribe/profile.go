package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbukum/scribe/transcription"
)

func newProfileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the host capability profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return printJSON(cmd.OutOrStdout(), a.orch.RefreshProfile(ctx))
			})
		},
	}
}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	var (
		model   string
		diarize bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe backends and show the routing plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BACKEND\tAVAILABLE\tDEVICE\tENDPOINT\tREASON")
				for _, d := range a.orch.Backends(ctx) {
					fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", d.Kind, d.Available, d.ExecutionDevice, d.Endpoint, d.Reason)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if model == "" {
					return nil
				}
				plan, err := a.orch.Plan(ctx, transcription.ModelID(model), diarize)
				if err != nil {
					return fmt.Errorf("no plan for %s: %s", model, describeError(err))
				}
				fmt.Fprintf(out, "\nplan for %s:\n", plan.Model)
				for i, at := range plan.Attempts {
					fmt.Fprintf(out, "  %d. %s %s\n", i+1, at.Kind, at.Device)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "also show the plan for this model")
	cmd.Flags().BoolVarP(&diarize, "diarize", "d", false, "plan with diarization")
	return cmd
}
