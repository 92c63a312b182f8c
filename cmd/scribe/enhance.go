package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newEnhanceCmd(opts *rootOptions) *cobra.Command {
	var (
		localModel string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "enhance <transcript.txt|->",
		Short: "Title and summarize a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				model := localModel
				if model == "" {
					model = a.cfg.Enhance.LocalModel
				}
				e, err := a.orch.Enhance(ctx, text, a.cfg.Enhance.Prompts, model)
				if err != nil {
					return fmt.Errorf("enhancement failed: %s", describeError(err))
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(out, e)
				}
				fmt.Fprintf(out, "# %s\n\n%s\n", e.Title, e.Summary)
				fmt.Fprintf(cmd.ErrOrStderr(), "source=%s\n", e.Source)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&localModel, "local-model", "", `local model, or "none" to skip the local tier`)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	return cmd
}

func readText(path string, stdin io.Reader) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(b), nil
}
