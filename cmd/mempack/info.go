package main

import (
	"github.com/spf13/cobra"

	"github.com/maurocanuto/mempack/ann"
	"github.com/maurocanuto/mempack/pack"
)

func newInfoCommand() *cobra.Command {
	var annPath string

	cmd := &cobra.Command{
		Use:   "info <pack>",
		Short: "Print summary information about a .mpack container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packPath := args[0]
			if annPath == "" {
				annPath = defaultAnnPath(packPath)
			}

			p, err := pack.Open(packPath, true)
			if err != nil {
				return err
			}
			defer p.Close()

			cmd.Printf("chunks: %d\n", p.NumChunks())
			cmd.Printf("blocks: %d\n", p.NumBlocks())
			cmd.Printf("compressor: %s\n", p.Config.Compressor)
			cmd.Printf("chunk_size: %d\n", p.Config.ChunkSize)
			cmd.Printf("chunk_overlap: %d\n", p.Config.ChunkOverlap)
			if p.Config.ECC != nil {
				cmd.Printf("ecc: k=%d m=%d\n", p.Config.ECC.K, p.Config.ECC.M)
			} else {
				cmd.Printf("ecc: disabled\n")
			}

			a, err := ann.Open(annPath, true)
			if err != nil {
				cmd.Printf("ann: %v (not available)\n", err)
				return nil
			}
			defer a.Close()
			cmd.Printf("ann: N=%d d=%d M=%d efConstruction=%d\n", a.N(), a.Dim(), a.M(), a.EfConstruction())
			return nil
		},
	}

	cmd.Flags().StringVar(&annPath, "ann", "", "path to .ann index (default: pack path with .ann extension)")
	return cmd
}
