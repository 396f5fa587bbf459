package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/indexer"
	"github.com/ziadkadry99/hostkb/internal/loader"
	"github.com/ziadkadry99/hostkb/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <glob>...",
	Short: "Add listings and handbooks to the knowledge base",
	Long: `Discovers markdown and text files matching the given glob patterns
(doublestar syntax, e.g. "docs/**/*.md"), normalizes them, and ingests each
one: chunked by section, embedded and indexed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var ingestTenant tenantFlags

func init() {
	ingestCmd.Flags().StringVar(&ingestTenant.owner, "owner", "", "owner id the documents belong to")
	ingestCmd.Flags().StringVar(&ingestTenant.property, "property", "", "property id the documents describe")
	ingestCmd.Flags().StringVar(&ingestTenant.scope, "scope", string(documents.ScopeProperty), "knowledge scope: property, owner or global")
	ingestCmd.Flags().StringSlice("exclude", nil, "additional glob patterns to skip")
	ingestCmd.Flags().Int64("max-size", loader.DefaultMaxFileSize, "skip files larger than this many bytes")
	ingestCmd.Flags().Bool("dry-run", false, "list the files that would be ingested and exit")
	ingestCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(ingestCmd)
}

type ingestResultJSON struct {
	Path         string  `json:"path"`
	DocumentID   int64   `json:"document_id,omitempty"`
	Chunks       int     `json:"chunks"`
	CaptureRatio float64 `json:"capture_ratio"`
	Error        string  `json:"error,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	maxSize, _ := cmd.Flags().GetInt64("max-size")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	files, err := loader.Discover(args, loader.Options{
		Exclude:     exclude,
		MaxFileSize: maxSize,
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	if dryRun {
		fmt.Printf("Would ingest %d files:\n", len(files))
		for _, f := range files {
			fmt.Printf("  %s (%s, %d bytes)\n", f.Path, f.Format, f.Size)
		}
		return nil
	}

	scope, err := ingestTenant.toolScope(string(documents.ScopeProperty))
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.Prepare(ctx); err != nil {
		return err
	}

	var (
		reqs  []indexer.IngestRequest
		paths []string
		out   []ingestResultJSON
	)
	for _, f := range files {
		doc, err := loader.Load(f.Path)
		if err != nil {
			out = append(out, ingestResultJSON{Path: f.Path, Error: err.Error()})
			continue
		}
		reqs = append(reqs, indexer.IngestRequest{
			Title:      doc.Title,
			Source:     doc.Path,
			Text:       doc.Text,
			Scope:      scope.KBScope,
			OwnerID:    scope.OwnerID,
			PropertyID: scope.PropertyID,
		})
		paths = append(paths, doc.Path)
	}

	reporter := progress.NewReporter("Ingesting")
	reporter.Start(len(reqs))
	batch := a.pipeline.IngestAll(ctx, reqs, func(processed, total int, current string) {
		reporter.Update(processed, current)
	})
	reporter.Finish()

	// Results arrive in completion order; report them in discovery order.
	bySource := make(map[string]indexer.IngestResult, len(batch.Results))
	for _, r := range batch.Results {
		bySource[r.Document.Source] = r
	}
	for _, p := range paths {
		r, ok := bySource[p]
		if !ok {
			continue
		}
		out = append(out, ingestResultJSON{
			Path:         p,
			DocumentID:   r.Document.ID,
			Chunks:       r.Chunks,
			CaptureRatio: r.CaptureRatio,
		})
	}
	for _, e := range batch.Errors {
		out = append(out, ingestResultJSON{Error: e.Error()})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	var failed int
	for _, r := range out {
		if r.Error != "" {
			failed++
			fmt.Printf("  FAIL %s: %s\n", r.Path, r.Error)
			continue
		}
		fmt.Printf("  #%d %s (%d chunks, capture %.0f%%)\n", r.DocumentID, r.Path, r.Chunks, r.CaptureRatio*100)
	}
	fmt.Printf("\nIngested %d of %d files.\n", len(out)-failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d files failed to ingest", failed)
	}
	return nil
}
