package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maurocanuto/mempack/embed"
	"github.com/maurocanuto/mempack/mempack"
	"github.com/maurocanuto/mempack/meta"
)

func newSearchCommand() *cobra.Command {
	var (
		annPath  string
		topK     int
		filters  []string
		efSearch int
	)

	cmd := &cobra.Command{
		Use:   "search <pack> <query>",
		Short: "Search a .mpack container for the nearest chunks to query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			packPath, query := args[0], args[1]
			if annPath == "" {
				annPath = defaultAnnPath(packPath)
			}

			filterMeta, err := parseFilters(filters)
			if err != nil {
				return newUsageError("%v", err)
			}

			cfg := mempack.DefaultConfig()
			if efSearch > 0 {
				cfg.EfSearch = efSearch
			}

			backend := embed.NewHashBackend(64)
			r, err := mempack.OpenRetriever(cfg, packPath, annPath, backend)
			if err != nil {
				return err
			}
			defer r.Close()

			hits, err := r.Search(context.Background(), query, topK, filterMeta)
			if err != nil {
				return err
			}
			for _, h := range hits {
				cmd.Printf("%.4f\tchunk=%d\t%s\n", h.Score, h.ChunkID, truncate(h.Text, 120))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&annPath, "ann", "", "path to .ann index (default: pack path with .ann extension)")
	cmd.Flags().IntVar(&topK, "top-k", 10, "number of results to return")
	cmd.Flags().IntVar(&efSearch, "ef-search", 0, "override the HNSW search breadth")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "metadata filter key=value, repeatable")
	return cmd
}

// parseFilters turns "key=value" CLI flags into the string-valued
// filter_meta map the retriever compares with Value.Equal.
func parseFilters(filters []string) (map[string]meta.Value, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	out := make(map[string]meta.Value, len(filters))
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, newUsageError("filter %q must be key=value", f)
		}
		out[key] = meta.String(value)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
