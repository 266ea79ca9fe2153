package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/menta2k/image-quality/internal/config"
	"github.com/menta2k/image-quality/internal/logging"
)

var (
	cfgFile    string
	verbose    bool
	backendArg string
	urlArg     string
	modelArg   string
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "image-quality",
	Short: "image-quality - context-aware photo quality scoring",
	Long: "Scores photographs with local heuristics that respect the image context " +
		"(black and white, low/high key, portrait, background blur) or with a vision model " +
		"served by Ollama or llama.cpp.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("backend") {
			cfg.Remote.Backend = backendArg
		}
		if flags.Changed("url") {
			cfg.Remote.URL = urlArg
		}
		if flags.Changed("model") {
			cfg.Remote.Model = modelArg
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log.Debug().Str("backend", cfg.Remote.Backend).Str("model", cfg.Remote.Model).Msg("configuration loaded")

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.FileName+" or "+config.GetConfigPath()+")")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&backendArg, "backend", "", "vision backend: ollama or llamacpp")
	flags.StringVar(&urlArg, "url", "", "vision server URL")
	flags.StringVar(&modelArg, "model", "", "vision model name")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(configCmd)
}
