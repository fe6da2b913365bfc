package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelabel/internal/config"
	"github.com/teslashibe/go-facelabel/pkg/detection"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load every model and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := settings
		applyFlags(cmd, &f)

		paths := config.Models(f.Models.Dir)
		face := paths.Cascade
		if f.Detector.Backend == detection.BackendYuNet {
			face = paths.YuNet
		}
		for _, p := range []string{face, paths.AgeProto, paths.AgeWeights, paths.GenderProto, paths.GenderWeights} {
			fmt.Fprintln(cmd.OutOrStdout(), "  "+p)
		}

		m, err := loadModels(f, flagCUDA)
		if err != nil {
			return err
		}
		if err := m.Close(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "models OK")
		return nil
	},
}

func init() {
	addModelFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}
