package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/maurocanuto/mempack/mempack"
)

func newVerifyCommand() *cobra.Command {
	var annPath string

	cmd := &cobra.Command{
		Use:   "verify <pack>",
		Short: "Verify block checksums and attempt ECC repair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packPath := args[0]
			if annPath == "" {
				annPath = defaultAnnPath(packPath)
			}

			report, err := mempack.Verify(context.Background(), packPath, annPath)
			if err != nil {
				return err
			}

			cmd.Printf("blocks: %d ok, %d corrupted, %d recovered, %d unrecoverable\n",
				report.OK, report.Corrupted, report.Recovered, report.Unrecoverable)
			if report.Unrecoverable > 0 {
				return newCorruptError("%d block(s) unrecoverable", report.Unrecoverable)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&annPath, "ann", "", "path to .ann index (default: pack path with .ann extension)")
	return cmd
}
