package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/menta2k/image-quality/internal/config"
	"github.com/menta2k/image-quality/internal/logging"
	"github.com/menta2k/image-quality/internal/utils"
	"github.com/menta2k/image-quality/pkg/batch"
	"github.com/menta2k/image-quality/pkg/preview"
	"github.com/menta2k/image-quality/pkg/report"
	"github.com/menta2k/image-quality/pkg/types"
)

var (
	batchSize    int
	batchPause   time.Duration
	batchMethod  string
	batchCSV     string
	batchJSON    string
	batchPreview bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir|files...>",
	Short: "Score many images in chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		method, err := types.ParseMethod(batchMethod)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.Batch.Size = batchSize
		}
		if cmd.Flags().Changed("pause") {
			cfg.Batch.Pause = batchPause
		}
		if cfg.Batch.Size < 1 {
			return fmt.Errorf("batch size must be positive")
		}

		files, err := utils.ExpandSources(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no images found in %v", args)
		}

		iq, err := newAnalyzer(cfg, method)
		if err != nil {
			return err
		}

		var previews preview.Store = preview.NopStore{}
		if batchPreview {
			fs, err := preview.NewFileStore("")
			if err != nil {
				return err
			}
			defer fs.Close()
			previews = fs
		}

		logger := logging.WithComponent("batch")
		orch := batch.New(iq.BatchFunc(method), previews, batch.Options{
			BatchSize: cfg.Batch.Size,
			Pause:     cfg.Batch.Pause,
			Logger:    &logger,
			OnUpdate:  progress(),
		})
		defer orch.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		added, err := orch.Add(ctx, files...)
		if err != nil {
			log.Warn().Err(err).Msg("some images were skipped")
		}
		log.Info().
			Int("images", len(added)).
			Int("skipped", len(files)-len(added)).
			Str("method", string(method)).
			Msg("batch queued")

		runErr := orch.Run(ctx)
		if errors.Is(runErr, context.Canceled) {
			log.Warn().Msg("interrupted, unfinished images left pending")
		} else if runErr != nil {
			return runErr
		}

		items := orch.Snapshot()
		printBatch(cmd.OutOrStdout(), items)

		csvPath := batchCSV
		if csvPath == "" {
			csvPath = cfg.Output.CSVPath
		}
		if csvPath != "" {
			if err := writeReport(csvPath, func(w io.Writer) error { return report.WriteCSV(w, items) }); err != nil {
				return err
			}
			log.Info().Str("path", csvPath).Msg("wrote CSV report")
		}

		jsonPath := batchJSON
		if jsonPath == "" {
			jsonPath = cfg.Output.JSONPath
		}
		if jsonPath != "" {
			if err := writeReport(jsonPath, func(w io.Writer) error { return report.WriteJSON(w, items) }); err != nil {
				return err
			}
			log.Info().Str("path", jsonPath).Msg("wrote JSON report")
		}

		return nil
	},
}

// progress logs each time another image settles
func progress() func([]batch.ImageFile) {
	settled := -1
	return func(items []batch.ImageFile) {
		s := batch.Summarize(items)
		if done := s.Completed + s.Failed; done != settled {
			settled = done
			log.Debug().Int("done", done).Int("total", s.Total).Msg("progress")
		}
	}
}

func writeReport(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func init() {
	flags := batchCmd.Flags()
	flags.IntVarP(&batchSize, "batch-size", "b", batch.DefaultBatchSize, "images analysed concurrently per chunk")
	flags.DurationVar(&batchPause, "pause", batch.DefaultPause, "pause between chunks")
	flags.StringVarP(&batchMethod, "method", "m", "local", "scoring method: local or vision")
	flags.StringVar(&batchCSV, "csv", "", "write a CSV report to this path")
	flags.StringVar(&batchJSON, "json", "", "write a JSON report to this path")
	flags.BoolVar(&batchPreview, "previews", false, "render webp preview thumbnails while analysing")
}
