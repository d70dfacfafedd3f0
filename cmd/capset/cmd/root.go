package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"capset/internal/config"
)

var (
	configPath  string
	datasetRoot string
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "capset",
	Short: "Backend for the image-captioning dataset editor",
	Long: `capset stores per-image captions and grid-aligned training
resolutions alongside dataset images, and performs crop, resize, and
pad transforms so image dimensions align to the training grid.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "config" {
			return nil
		}

		if configPath != "" {
			loaded, err := config.LoadFromFile(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		} else {
			cfg = config.Default()
		}
		if datasetRoot != "" {
			cfg.Dataset.Root = datasetRoot
		}
		return cfg.Validate()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&datasetRoot, "root", "r", "", "dataset root directory (overrides config)")
}
