package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"capset/pkg/dataset"
	"capset/pkg/store"
	"capset/pkg/vocab"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab [dataset]",
	Short: "Print the caption vocabulary of one dataset, or of all datasets",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := dataset.NewRoot(cfg.Dataset.Root)
		extractor := vocab.New(root, store.New(root))

		var words []string
		var err error
		if len(args) == 1 {
			words, err = extractor.Dataset(args[0])
		} else {
			words, err = extractor.Global()
		}
		if err != nil {
			return err
		}

		for _, word := range words {
			fmt.Fprintln(cmd.OutOrStdout(), word)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vocabCmd)
}
