package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crace/crace/internal/log"
	"github.com/crace/crace/internal/projectid"
	"github.com/crace/crace/pkg/embed"
	"github.com/crace/crace/pkg/symbol"
	"github.com/crace/crace/pkg/vectorindex"
	"github.com/spf13/cobra"
)

// indexCmd builds (or rebuilds) a project's symbol and embedding index
// without starting the HTTP/WebSocket server, for one-shot use from
// scripts or editors.
var indexCmd = &cobra.Command{
	Use:   "index [flags]",
	Short: "Build the symbol and embedding index for a project",
	Long: `index walks --project, parses every supported source file into the
Symbol Index, then (unless --symbols-only is set) embeds each discovered
function/method/class into a persisted vector index snapshot under
--storage-dir, the same <project_id>_symbols.json file format the daemon
loads at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectPath, _ := cmd.Flags().GetString("project")
		maxFiles, _ := cmd.Flags().GetInt("max-files")
		symbolsOnly, _ := cmd.Flags().GetBool("symbols-only")
		configPath, _ := cmd.Flags().GetString("config")
		return runIndex(projectPath, maxFiles, symbolsOnly, configPath)
	},
}

func init() {
	indexCmd.Flags().String("project", ".", "Project directory to index")
	indexCmd.Flags().Int("max-files", 0, "Cap on files walked (0 = unbounded)")
	indexCmd.Flags().Bool("symbols-only", false, "Skip embedding; only build the symbol index")
	indexCmd.Flags().String("config", "", "Config file path (default ~/.crace/config.yaml)")
}

func runIndex(projectPath string, maxFiles int, symbolsOnly bool, configPath string) error {
	absRoot, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolving project path: %w", err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.ProjectRoot = absRoot

	logger := log.Default()

	idx := symbol.NewIndex()
	start := time.Now()
	walkCtx, cancelWalk := context.WithTimeout(context.Background(), cfg.WalkTimeout)
	count, err := idx.IndexProjectContext(walkCtx, absRoot, maxFiles)
	cancelWalk()
	if err != nil {
		return fmt.Errorf("indexing project: %w", err)
	}
	stats := idx.Stats()
	fmt.Printf("Indexed %d files (%d symbols, %d call-graph edges) in %s\n",
		count, stats.TotalSymbols, stats.CallGraphEdges, time.Since(start).Round(time.Millisecond))

	if symbolsOnly {
		return nil
	}

	embedder, err := embed.NewEmbeddingService(cfg)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	var syms []symbol.Symbol
	for _, kind := range []symbol.Kind{symbol.KindFunction, symbol.KindMethod, symbol.KindClass} {
		syms = append(syms, idx.FindByKind(kind)...)
	}
	if len(syms) == 0 {
		fmt.Println("No function/method/class symbols to embed")
		return nil
	}

	texts := make([]string, len(syms))
	for i, sym := range syms {
		texts[i] = symbolEmbeddingText(sym)
	}

	spinner := log.NewProgressSpinner(fmt.Sprintf("Embedding %d symbols...", len(syms)))
	spinner.Start()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout)
	defer cancel()
	vectors, err := embedder.Embed(ctx, "warm", texts)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("embedding symbols: %w", err)
	}

	vecIdx := vectorindex.New(cfg.EmbeddingDimension)
	items := make([]vectorindex.Item, len(syms))
	for i, sym := range syms {
		items[i] = vectorindex.Item{
			ID:        sym.ID(),
			Text:      texts[i],
			Embedding: vectors[i],
			Metadata: map[string]interface{}{
				"name":      sym.Name,
				"kind":      string(sym.Kind),
				"file_path": sym.FilePath,
				"line":      sym.Line,
			},
		}
	}
	vecIdx.AddBatch(items)

	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return fmt.Errorf("creating storage dir: %w", err)
	}
	snapshotPath := filepath.Join(cfg.StorageDir, projectid.For(absRoot)+"_symbols.json")
	if err := vecIdx.Save(snapshotPath); err != nil {
		return fmt.Errorf("saving embedding snapshot: %w", err)
	}

	fmt.Printf("Embedded %d symbols into %s\n", len(items), snapshotPath)
	logger.Debug("index: done in %s", time.Since(start))
	return nil
}

// symbolEmbeddingText builds the text a symbol is embedded from: kind,
// name, signature, then docstring.
func symbolEmbeddingText(sym symbol.Symbol) string {
	text := string(sym.Kind) + " " + sym.Name + " " + sym.Signature
	if sym.Docstring != "" {
		text += " " + sym.Docstring
	}
	return text
}

