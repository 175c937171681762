package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"matrixscreen/internal/services"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "matrixscreen",
		Short:         "Index, stitch and compress Leica MatrixScreener experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(services.WithRequestID(cmd.Context(), uuid.NewString()))
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Write machine-readable JSON instead of tables")

	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newWellsCommand(ctx))
	rootCmd.AddCommand(newFieldsCommand(ctx))
	rootCmd.AddCommand(newImagesCommand(ctx))
	rootCmd.AddCommand(newImageCommand(ctx))
	rootCmd.AddCommand(newMetadataCommand(ctx))
	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newStitchCommand(ctx))
	rootCmd.AddCommand(newCoordinatesCommand(ctx))
	rootCmd.AddCommand(newCompressCommand(ctx))
	rootCmd.AddCommand(newDecompressCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
