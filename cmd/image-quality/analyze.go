package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/menta2k/image-quality/internal/config"
	"github.com/menta2k/image-quality/internal/utils"
	"github.com/menta2k/image-quality/pkg/types"
)

var (
	analyzeMethod string
	analyzeFormat string
	analyzeDebug  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path|url|data-url|base64>",
	Short: "Score a single image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)
		source := args[0]

		method, err := types.ParseMethod(analyzeMethod)
		if err != nil {
			return err
		}
		if analyzeFormat != "text" && analyzeFormat != "json" {
			return fmt.Errorf("unknown format %q (use 'text' or 'json')", analyzeFormat)
		}

		iq, err := newAnalyzer(cfg, method)
		if err != nil {
			return err
		}

		a, err := iq.Analyze(ctx, source, method)
		if err != nil {
			return err
		}

		name := "image"
		if utils.FileExists(source) {
			name = source
		}

		out := cmd.OutOrStdout()
		if analyzeFormat == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(a); err != nil {
				return err
			}
		} else {
			printAssessment(out, name, a)
		}

		dir := analyzeDebug
		if dir == "" {
			dir = cfg.Output.DebugDir
		}
		if dir == "" {
			return nil
		}
		if a.Local == nil {
			log.Warn().Msg("debug overlay needs the local method, skipping")
			return nil
		}

		img, err := iq.LoadImage(ctx, source)
		if err != nil {
			return err
		}
		path, err := iq.SaveDebugOverlay(img, a.Local, name, dir)
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("wrote debug overlay")
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeMethod, "method", "m", "local", "scoring method: local or vision")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "output format: text or json")
	analyzeCmd.Flags().StringVar(&analyzeDebug, "debug", "", "write a debug overlay into this directory")
}
