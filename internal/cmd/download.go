package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/objstream/objstream/internal/observability"
	"github.com/objstream/objstream/pkg/client"
	"github.com/objstream/objstream/pkg/output"
)

var downloadCmd = &cobra.Command{
	Use:   "download <key> <local-path>",
	Short: "Download an object to a local file",
	Long: `Download an object to a local file.

By default chunks are fetched in parallel and assembled at their offsets in
a temp file that is atomically renamed into place; pass --single to use one
request.`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

var (
	downloadSingle      bool
	downloadChunkSize   int64
	downloadConcurrency int
	downloadBandwidth   int64
)

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().BoolVar(&downloadSingle, "single", false, "Use a single-request download")
	downloadCmd.Flags().Int64Var(&downloadChunkSize, "chunk-size", 0, "Ranged-read chunk size in bytes (0=config default)")
	downloadCmd.Flags().IntVar(&downloadConcurrency, "concurrency", 0, "Max concurrent ranged reads (0=config default)")
	downloadCmd.Flags().Int64Var(&downloadBandwidth, "bandwidth", 0, "Throughput cap in bytes/sec (0=unlimited)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	key, localPath := args[0], args[1]

	c, logger, err := newClient(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to create client", zap.Error(err))
		return err
	}
	defer func() { _ = c.Close() }()

	start := time.Now()
	var n int64
	if downloadSingle {
		n, err = c.Download(ctx, key, localPath)
	} else {
		n, err = c.DownloadMultipart(ctx, key, localPath,
			client.WithChunkSize(downloadChunkSize),
			client.WithConcurrency(downloadConcurrency),
			client.WithBandwidthLimit(downloadBandwidth),
		)
	}
	if err != nil {
		logger.Error("Download failed", zap.String("key", key), zap.String("path", localPath), zap.Error(err))
		return err
	}
	elapsed := time.Since(start)

	if w := recordWriter(); w != nil {
		defer func() { _ = w.Close() }()
		if err := w.WriteTransfer(ctx, &output.TransferRecord{
			Op:            "download",
			Key:           key,
			LocalPath:     localPath,
			Bytes:         n,
			Chunked:       !downloadSingle,
			Duration:      elapsed,
			DurationHuman: elapsed.Round(time.Millisecond).String(),
		}); err != nil {
			return err
		}
	}

	logger.Info("Download complete", zap.String("key", key), zap.Int64("bytes", n), zap.Duration("elapsed", elapsed))
	return nil
}
