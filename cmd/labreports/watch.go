package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/labreports/internal/async"
	"github.com/joseph-ayodele/labreports/internal/ingest"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

var (
	watchOnce       bool
	watchShowHidden bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir...]",
	Short: "Process lab reports dropped into directories",
	Long: `Watch directories recursively and process every PDF or image that is
created or written there. Existing files are processed first when
watch.initial_scan is set. With --once the directories are scanned a single
time and the command exits when the queue drains.

Directories default to watch.roots from the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		roots := args
		if len(roots) == 0 {
			roots = cfg.Watch.Roots
		}
		if len(roots) == 0 {
			return errors.New("no directories to watch: pass them as arguments or set watch.roots")
		}
		logger := newLogger(cfg.Log, os.Stdout)

		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		queue := async.NewProcessorQueue(a.processor, logger,
			async.WithWorkers(cfg.Queue.Workers),
			async.WithQueueSize(cfg.Queue.Size),
			async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
			async.WithResultFunc(func(job async.Job, res processor.Result, err error) {
				env := processor.NewEnvelope(res, err)
				logger.Info("watch.result", "path", job.Path, "report_id", env.ReportID, "outcome", env.String())
			}),
		)
		svc := ingest.NewService(queue, logger)

		if watchOnce {
			for _, root := range roots {
				if _, err := svc.EnqueueDirectory(ctx, root, !watchShowHidden); err != nil {
					logger.Error("scan failed", "root", root, "error", err)
				}
			}
			queue.Shutdown(ctx)
			return nil
		}

		err = svc.Watch(ctx, ingest.WatchConfig{
			Roots:       roots,
			InitialScan: cfg.Watch.InitialScan,
			Debounce:    cfg.Watch.Debounce,
			SkipHidden:  !watchShowHidden,
		})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "scan the directories once and exit")
	watchCmd.Flags().BoolVar(&watchShowHidden, "include-hidden", false, "also process hidden files and directories")
}
