package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/objstream/objstream/internal/observability"
	"github.com/objstream/objstream/pkg/transfer"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read an object (or byte range) to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var (
	getRangeStart int64
	getRangeEnd   int64
)

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().Int64Var(&getRangeStart, "start", -1, "Range start offset (inclusive)")
	getCmd.Flags().Int64Var(&getRangeEnd, "end", -1, "Range end offset (exclusive)")
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	key := args[0]

	var rng *transfer.Range
	if getRangeStart >= 0 || getRangeEnd >= 0 {
		if getRangeStart < 0 || getRangeEnd <= getRangeStart {
			return fmt.Errorf("invalid range [%d, %d)", getRangeStart, getRangeEnd)
		}
		rng = &transfer.Range{Start: getRangeStart, End: getRangeEnd}
	}

	c, logger, err := newClient(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to create client", zap.Error(err))
		return err
	}
	defer func() { _ = c.Close() }()

	data, err := c.Get(ctx, key, rng)
	if err != nil {
		logger.Error("Get failed", zap.String("key", key), zap.Error(err))
		return err
	}

	if _, err := os.Stdout.Write(data); err != nil {
		return err
	}
	logger.Info("Get complete", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}
