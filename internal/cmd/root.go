// Package cmd implements the objstream command-line interface.
package cmd

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/objstream/objstream/internal/config"
	"github.com/objstream/objstream/internal/observability"
	"github.com/objstream/objstream/pkg/client"
	"github.com/objstream/objstream/pkg/output"
)

var rootCmd = &cobra.Command{
	Use:   "objstream",
	Short: "Accelerated object storage transfers",
	Long: `objstream moves objects to and from S3-compatible and GCS buckets using
concurrent chunked transfers, with transparent refresh of expiring
credentials.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := observability.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return err
		}
		loadedConfig = cfg
		return nil
	},
}

var (
	cfgFile  string
	logLevel string
	jsonOut  bool

	loadedConfig *config.Config
	currentJobID string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSONL records on stdout")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	return rootCmd.ExecuteContext(ctx)
}

// newClient builds a client from the loaded configuration. Each invocation
// carries a job ID in its logs so concurrent runs stay distinguishable.
func newClient(ctx context.Context) (*client.Client, *zap.Logger, error) {
	kind, err := client.ParseKind(loadedConfig.Provider)
	if err != nil {
		return nil, nil, err
	}

	currentJobID = uuid.NewString()
	logger := observability.CLILogger.With(zap.String("job_id", currentJobID))
	c, err := client.New(ctx, kind, loadedConfig.BackendConfig(), client.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}

// recordWriter returns a JSONL writer for this invocation when --json is set,
// nil otherwise.
func recordWriter() output.Writer {
	if !jsonOut {
		return nil
	}
	return output.NewJSONLWriter(os.Stdout, currentJobID, loadedConfig.Provider)
}
