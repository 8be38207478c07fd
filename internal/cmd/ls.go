package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/objstream/objstream/internal/observability"
	"github.com/objstream/objstream/pkg/output"
	"github.com/objstream/objstream/pkg/transfer"
)

var lsCmd = &cobra.Command{
	Use:   "ls [prefix...]",
	Short: "List objects recursively under one or more prefixes",
	RunE:  runLs,
}

var (
	lsLimit       int
	lsSuffix      string
	lsPattern     string
	lsMaxDepth    int
	lsConcurrency int
)

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().IntVar(&lsLimit, "limit", 0, "Max objects to return (0=unlimited)")
	lsCmd.Flags().StringVar(&lsSuffix, "suffix", "", "Keep only keys with this suffix")
	lsCmd.Flags().StringVar(&lsPattern, "pattern", "", "Keep only keys matching this glob pattern")
	lsCmd.Flags().IntVar(&lsMaxDepth, "max-depth", transfer.UnlimitedDepth, "Max directory levels to expand (-1=unlimited)")
	lsCmd.Flags().IntVar(&lsConcurrency, "concurrency", 0, "Max concurrent directory listings (0=config default)")
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, logger, err := newClient(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to create client", zap.Error(err))
		return err
	}
	defer func() { _ = c.Close() }()

	start := time.Now()
	result, err := c.ListRecursive(ctx, args, transfer.ListRecursiveOptions{
		Limit:          lsLimit,
		Suffix:         lsSuffix,
		Pattern:        lsPattern,
		MaxDepth:       lsMaxDepth,
		MaxConcurrency: lsConcurrency,
	})
	if err != nil {
		logger.Error("List failed", zap.Strings("prefixes", args), zap.Error(err))
		return err
	}

	if jw := recordWriter(); jw != nil {
		defer func() { _ = jw.Close() }()
		if err := writeListRecords(cmd, jw, result, time.Since(start)); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, dir := range result.Directories {
			fmt.Fprintf(w, "DIR\t\t\t%s\n", dir.Key)
		}
		for _, obj := range result.Objects {
			fmt.Fprintf(w, "OBJ\t%d\t%s\t%s\n", obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"), obj.Key)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	logger.Info("List complete",
		zap.Int("objects", len(result.Objects)),
		zap.Int("directories", len(result.Directories)),
	)
	return nil
}

func writeListRecords(cmd *cobra.Command, w output.Writer, result *transfer.ListResult, elapsed time.Duration) error {
	ctx := cmd.Context()
	var bytesTotal int64
	for _, dir := range result.Directories {
		if err := w.WriteObject(ctx, &output.ObjectRecord{Key: dir.Key, Dir: true}); err != nil {
			return err
		}
	}
	for _, obj := range result.Objects {
		bytesTotal += obj.Size
		if err := w.WriteObject(ctx, &output.ObjectRecord{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		}); err != nil {
			return err
		}
	}
	return w.WriteSummary(ctx, &output.SummaryRecord{
		Objects:     int64(len(result.Objects)),
		Directories: int64(len(result.Directories)),
		BytesTotal:  bytesTotal,
		Duration:    elapsed,
	})
}
