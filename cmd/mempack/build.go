package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maurocanuto/mempack/compress"
	"github.com/maurocanuto/mempack/ecc"
	"github.com/maurocanuto/mempack/embed"
	"github.com/maurocanuto/mempack/mempack"
	"github.com/maurocanuto/mempack/meta"
)

func newBuildCommand() *cobra.Command {
	var (
		outPack      string
		outAnn       string
		compressor   string
		chunkSize    int
		chunkOverlap int
		eccK         int
		eccM         int
	)

	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Build a .mpack/.ann pair from a directory of text files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			entries, err := os.ReadDir(dir)
			if err != nil {
				return newUsageError("reading %s: %v", dir, err)
			}

			cfg := mempack.DefaultConfig()
			cfg.ChunkSize = chunkSize
			cfg.ChunkOverlap = chunkOverlap
			if compressor != "" {
				codec, err := compress.ParseCodec(compressor)
				if err != nil {
					return newUsageError("%v", err)
				}
				cfg.Compressor = codec
			}
			if eccK > 0 {
				cfg.ECC = &ecc.Params{K: eccK, M: eccM}
			}

			// A real embedding backend is out of scope (spec.md §1
			// Non-goals); the hash backend gives build a deterministic,
			// dependency-free default for the CLI's own use.
			backend := embed.NewHashBackend(64)
			enc, err := mempack.NewEncoder(cfg, backend)
			if err != nil {
				return err
			}

			for _, ent := range entries {
				if ent.IsDir() {
					continue
				}
				path := filepath.Join(dir, ent.Name())
				text, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := enc.AddDocument(mempack.Document{
					Text: string(text),
					Meta: meta.Record{{Key: "source", Value: meta.String(ent.Name())}},
				}); err != nil {
					return err
				}
			}

			if err := enc.BuildToFiles(context.Background(), outPack, outAnn); err != nil {
				return err
			}
			cmd.Printf("wrote %s and %s\n", outPack, outAnn)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPack, "out", "out.mpack", "output .mpack path")
	cmd.Flags().StringVar(&outAnn, "ann-out", "out.ann", "output .ann path")
	cmd.Flags().StringVar(&compressor, "compressor", "", "block codec: none, deflate, zstd")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 800, "target chunk length in characters")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 120, "characters shared with the previous chunk")
	cmd.Flags().IntVar(&eccK, "ecc-k", 0, "ecc data shards per group (0 disables ecc)")
	cmd.Flags().IntVar(&eccM, "ecc-m", 0, "ecc parity shards per group")
	return cmd
}
