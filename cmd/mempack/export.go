package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/maurocanuto/mempack/compress"
	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/meta"
	"github.com/maurocanuto/mempack/pack"
)

type exportedChunk struct {
	ChunkID uint64                 `json:"chunk_id"`
	Text    string                 `json:"text"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

func newExportCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <pack>",
		Short: "Export every chunk's text and metadata as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pack.Open(args[0], true)
			if err != nil {
				return err
			}
			defer p.Close()

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return newUsageError("creating %s: %v", outPath, err)
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)

			blocks := make(map[uint32][]byte, p.NumBlocks())
			for _, e := range p.ChunkEntries {
				data, err := decompressedBlock(p, blocks, e.BlockID)
				if err != nil {
					return err
				}
				if uint64(e.OffsetInBlock)+uint64(e.Length) > uint64(len(data)) {
					return errors.E(errors.ChunkUnavailable, "chunk extends past its block")
				}
				text := string(data[e.OffsetInBlock : e.OffsetInBlock+e.Length])

				rec, err := p.ChunkMeta(e)
				if err != nil {
					return err
				}
				if err := enc.Encode(exportedChunk{
					ChunkID: e.ChunkID,
					Text:    text,
					Meta:    metaToMap(rec),
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write JSON lines to this file instead of stdout")
	return cmd
}

// decompressedBlock returns blockID's decompressed bytes, populating
// cache on first access so a block shared by many chunks is only
// decompressed once per export run.
func decompressedBlock(p *pack.Reader, cache map[uint32][]byte, blockID uint32) ([]byte, error) {
	if data, ok := cache[blockID]; ok {
		return data, nil
	}
	compressed, err := p.CompressedBlock(blockID)
	if err != nil {
		return nil, err
	}
	e := p.BlockEntries[blockID]
	dst := make([]byte, 0, e.UncompressedSize)
	data, err := compress.Decompress(compress.Codec(e.Codec), dst, compressed)
	if err != nil {
		return nil, err
	}
	cache[blockID] = data
	return data, nil
}

func metaToMap(rec meta.Record) map[string]interface{} {
	if len(rec) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(rec))
	for _, kv := range rec {
		if v, ok := kv.Value.String(); ok {
			out[kv.Key] = v
			continue
		}
		if v, ok := kv.Value.Int64(); ok {
			out[kv.Key] = v
			continue
		}
		if v, ok := kv.Value.Float64(); ok {
			out[kv.Key] = v
			continue
		}
		if v, ok := kv.Value.Bool(); ok {
			out[kv.Key] = v
			continue
		}
		out[kv.Key] = nil
	}
	return out
}
