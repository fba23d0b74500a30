package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/clipbox/clipbox/internal/backup"
	"github.com/clipbox/clipbox/internal/capture"
	"github.com/clipbox/clipbox/internal/config"
	"github.com/clipbox/clipbox/internal/di"
	"github.com/clipbox/clipbox/internal/di/providers"
)

var validFormats = []string{"text", "json"}

// rootOptions holds global flags for all commands.
type rootOptions struct {
	DataPath    string
	StagingPath string
	LogLevel    string
	LogFile     string
	EnvFile     string
	Format      string
}

// configArgs renders the options as daemon configuration flags.
func (o *rootOptions) configArgs() []string {
	args := []string{"-env-file", o.EnvFile, "-watch-staging", "false"}
	for _, kv := range [][2]string{
		{"-data-path", o.DataPath},
		{"-staging-path", o.StagingPath},
		{"-log-level", o.LogLevel},
		{"-log-file", o.LogFile},
	} {
		if kv[1] != "" {
			args = append(args, kv[0], kv[1])
		}
	}
	return args
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "clipctl",
		Short: "Capture clips and run ClipBox maintenance from the command line",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DataPath, "data-path", "", "base path of the primary and reference stores")
	cmd.PersistentFlags().StringVar(&opts.StagingPath, "staging-path", "", "staging area shared with the capture flow")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "write logs to a rotated file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "path to .env file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newCaptureCommand(opts))
	cmd.AddCommand(newTagCommand(opts))
	cmd.AddCommand(newPersistCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))

	return cmd
}

// session holds the container a command runs against.
type session struct {
	injector *do.RootScope
}

// openSession builds the container and resolves T, which opens only the
// stores T depends on.
func openSession[T any](opts *rootOptions, logs io.Writer) (*session, error) {
	injector := di.NewContainer(opts.configArgs())
	// Keep stdout for command output.
	do.OverrideValue(injector, providers.LogOutput{Writer: logs})
	if _, err := do.Invoke[T](injector); err != nil {
		_ = injector.Shutdown()
		return nil, err
	}
	return &session{injector: injector}, nil
}

func (s *session) coordinator() *providers.CoordinatorHandle {
	return do.MustInvoke[*providers.CoordinatorHandle](s.injector)
}

func (s *session) capturer() *capture.Capturer {
	return do.MustInvoke[*capture.Capturer](s.injector)
}

func (s *session) search() *providers.SearchIndexHandle {
	return do.MustInvoke[*providers.SearchIndexHandle](s.injector)
}

func (s *session) exporter() *backup.Exporter {
	return do.MustInvoke[*backup.Exporter](s.injector)
}

func (s *session) config() *config.Config {
	return do.MustInvoke[*config.Config](s.injector)
}

func (s *session) close() {
	_ = s.injector.Shutdown()
}

// withSession runs fn against freshly opened stores and closes them after.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(*session) error) error {
	return run[*providers.CoordinatorHandle](cmd, opts, fn)
}

// withCaptureSession opens only what the capture flow writes: the staging
// area and the reference store. The primary store stays closed.
func withCaptureSession(cmd *cobra.Command, opts *rootOptions, fn func(*session) error) error {
	return run[*capture.Capturer](cmd, opts, fn)
}

func run[T any](cmd *cobra.Command, opts *rootOptions, fn func(*session) error) error {
	s, err := openSession[T](opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

// output writes v as JSON, or calls text for the text format.
func output(w io.Writer, format string, v any, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
