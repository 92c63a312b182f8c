package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	apperrors "github.com/kbukum/scribe/errors"
)

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "scribe",
		Short: "Adaptive transcription and enhancement",
		Long: `scribe routes transcription to the best available backend:
an aligned diarization service, a heavy inference server, a cloud API,
or in-process inference, falling back tier by tier.

Finished transcripts can be titled and summarized by a local model,
a cloud model, or deterministic rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: ./scribe.yml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newTranscribeCmd(opts),
		newEnhanceCmd(opts),
		newProfileCmd(opts),
		newProbeCmd(opts),
		newCredentialsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads configuration honoring the persistent flags.
func (o *rootOptions) load() (*Config, error) {
	cfg, err := loadConfig(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// withApp wires the application, runs fn, and shuts everything down.
func (o *rootOptions) withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil {
			a.log.Warn("shutdown", map[string]interface{}{"error": cerr.Error()})
		}
	}()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError renders an error for the terminal, preferring the
// user-facing message of application errors.
func describeError(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return fmt.Sprintf("%s (%s)", appErr.Message, appErr.Code)
	}
	return err.Error()
}
