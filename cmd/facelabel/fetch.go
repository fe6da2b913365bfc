package main

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelabel/internal/config"
	"github.com/teslashibe/go-facelabel/internal/httpc"
	"github.com/teslashibe/go-facelabel/internal/log"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download model files into the model directory",
	Long: `Fetch downloads every entry of models.sources, plus the public detector
models, into the model directory. Existing files are replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := settings
		applyFlags(cmd, &f)
		logger := log.Component("fetch")

		sources := config.DefaultSources()
		maps.Copy(sources, f.Models.Sources)

		for _, name := range slices.Sorted(maps.Keys(sources)) {
			dst := filepath.Join(f.Models.Dir, name)
			n, err := httpc.Download(cmd.Context(), httpc.Client, sources[name], dst)
			if err != nil {
				return err
			}
			logger.Info("fetched", "file", dst, "bytes", n)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d files in %s\n", len(sources), f.Models.Dir)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&flagModels, "models", "", "Directory to download into")
	rootCmd.AddCommand(fetchCmd)
}
