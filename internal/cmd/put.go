package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/objstream/objstream/internal/observability"
)

var putCmd = &cobra.Command{
	Use:   "put <key>",
	Short: "Write stdin to an object in a single request",
	Args:  cobra.ExactArgs(1),
	RunE:  runPut,
}

func init() {
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	key := args[0]

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	c, logger, err := newClient(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to create client", zap.Error(err))
		return err
	}
	defer func() { _ = c.Close() }()

	n, err := c.Put(ctx, key, data)
	if err != nil {
		logger.Error("Put failed", zap.String("key", key), zap.Error(err))
		return err
	}

	logger.Info("Put complete", zap.String("key", key), zap.Int64("bytes", n))
	return nil
}
