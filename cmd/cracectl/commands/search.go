package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crace/crace/internal/projectid"
	"github.com/crace/crace/pkg/embed"
	"github.com/crace/crace/pkg/hybrid"
	"github.com/crace/crace/pkg/symbol"
	"github.com/crace/crace/pkg/vectorindex"
)

// searchCmd is the one-shot counterpart to the daemon's index/search route:
// build the symbol index for --project, optionally load the embedding
// snapshot `cracectl index` wrote, and print fused results.
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a project's symbols by keyword and, when indexed, semantically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectPath, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")
		keywordOnly, _ := cmd.Flags().GetBool("keyword-only")
		configPath, _ := cmd.Flags().GetString("config")
		return runSearch(args[0], projectPath, limit, keywordOnly, configPath)
	},
}

func init() {
	searchCmd.Flags().String("project", ".", "Project directory to search")
	searchCmd.Flags().Int("limit", 10, "Maximum results")
	searchCmd.Flags().Bool("keyword-only", false, "Skip the semantic leg even if an embedding snapshot exists")
	searchCmd.Flags().String("config", "", "Config file path (default ~/.crace/config.yaml)")
}

func runSearch(query, projectPath string, limit int, keywordOnly bool, configPath string) error {
	absRoot, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolving project path: %w", err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	idx := symbol.NewIndex()
	walkCtx, cancelWalk := context.WithTimeout(context.Background(), cfg.WalkTimeout)
	_, err = idx.IndexProjectContext(walkCtx, absRoot, cfg.MaxIndexFiles)
	cancelWalk()
	if err != nil {
		return fmt.Errorf("indexing project: %w", err)
	}

	keywordSyms := idx.SearchSymbols(query, limit)

	if keywordOnly {
		printKeywordResults(keywordSyms)
		return nil
	}

	vecIdx := vectorindex.New(cfg.EmbeddingDimension)
	snapshotPath := filepath.Join(cfg.StorageDir, projectid.For(absRoot)+"_symbols.json")
	if err := vecIdx.Load(snapshotPath); err != nil {
		fmt.Printf("No embedding snapshot at %s; keyword results only (run `cracectl index` first)\n\n", snapshotPath)
		printKeywordResults(keywordSyms)
		return nil
	}

	embedder, err := embed.NewEmbeddingService(cfg)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout)
	defer cancel()
	vecs, err := embedder.Embed(ctx, "search", []string{query})
	if err != nil {
		fmt.Printf("Query embedding failed (%v); keyword results only\n\n", err)
		printKeywordResults(keywordSyms)
		return nil
	}

	keywordHits := make([]hybrid.KeywordHit, 0, len(keywordSyms))
	byID := make(map[string]symbol.Symbol, len(keywordSyms))
	for _, sym := range keywordSyms {
		keywordHits = append(keywordHits, hybrid.KeywordHit{ID: sym.ID(), Text: sym.Signature})
		byID[sym.ID()] = sym
	}

	var semanticHits []hybrid.SemanticHit
	for _, res := range vecIdx.Search(vecs[0], 2*limit) {
		semanticHits = append(semanticHits, hybrid.SemanticHit{ID: res.ID, Text: res.Text, Score: res.Score, Metadata: res.Metadata})
	}

	weights := hybrid.Weights{Keyword: cfg.HybridKeywordWeight, Semantic: cfg.HybridSemanticWeight}
	fused := hybrid.Fuse(keywordHits, semanticHits, weights, limit)

	for i, f := range fused {
		if sym, ok := byID[f.ID]; ok {
			fmt.Printf("%2d. [%.3f %s] %s  %s:%d\n", i+1, f.Score, f.Source, sym.QualifiedName(), sym.FilePath, sym.Line)
			continue
		}
		loc := ""
		if fp, ok := f.Metadata["file_path"].(string); ok {
			loc = fmt.Sprintf("  %s", fp)
			if line, ok := f.Metadata["line"].(float64); ok {
				loc += fmt.Sprintf(":%d", int(line))
			}
		}
		fmt.Printf("%2d. [%.3f %s] %s%s\n", i+1, f.Score, f.Source, f.Text, loc)
	}
	if len(fused) == 0 {
		fmt.Println("No results.")
	}
	return nil
}

func printKeywordResults(syms []symbol.Symbol) {
	if len(syms) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, sym := range syms {
		fmt.Printf("%2d. %-10s %s  %s:%d\n", i+1, sym.Kind, sym.QualifiedName(), sym.FilePath, sym.Line)
	}
}
