package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/objstream/objstream/internal/observability"
	"github.com/objstream/objstream/pkg/client"
	"github.com/objstream/objstream/pkg/output"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> <key>",
	Short: "Upload a local file",
	Long: `Upload a local file to an object.

By default the file streams through a concurrent multipart upload; pass
--single to use one request regardless of size.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

var (
	uploadSingle      bool
	uploadChunkSize   int64
	uploadConcurrency int
	uploadBandwidth   int64
)

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().BoolVar(&uploadSingle, "single", false, "Use a single-request upload")
	uploadCmd.Flags().Int64Var(&uploadChunkSize, "chunk-size", 0, "Multipart chunk size in bytes (0=config default)")
	uploadCmd.Flags().IntVar(&uploadConcurrency, "concurrency", 0, "Max in-flight parts (0=config default)")
	uploadCmd.Flags().Int64Var(&uploadBandwidth, "bandwidth", 0, "Throughput cap in bytes/sec (0=unlimited)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	localPath, key := args[0], args[1]

	c, logger, err := newClient(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to create client", zap.Error(err))
		return err
	}
	defer func() { _ = c.Close() }()

	start := time.Now()
	var n int64
	if uploadSingle {
		n, err = c.Upload(ctx, localPath, key)
	} else {
		n, err = c.UploadMultipart(ctx, localPath, key,
			client.WithChunkSize(uploadChunkSize),
			client.WithConcurrency(uploadConcurrency),
			client.WithBandwidthLimit(uploadBandwidth),
		)
	}
	if err != nil {
		logger.Error("Upload failed", zap.String("path", localPath), zap.String("key", key), zap.Error(err))
		return err
	}
	elapsed := time.Since(start)

	if w := recordWriter(); w != nil {
		defer func() { _ = w.Close() }()
		if err := w.WriteTransfer(ctx, &output.TransferRecord{
			Op:            "upload",
			Key:           key,
			LocalPath:     localPath,
			Bytes:         n,
			Chunked:       !uploadSingle,
			Duration:      elapsed,
			DurationHuman: elapsed.Round(time.Millisecond).String(),
		}); err != nil {
			return err
		}
	}

	logger.Info("Upload complete", zap.String("key", key), zap.Int64("bytes", n), zap.Duration("elapsed", elapsed))
	return nil
}
