package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/retriever"
	"github.com/ziadkadry99/hostkb/internal/searchengine"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search the knowledge base",
	Long:  `Runs a retrieval request against the knowledge base and prints the matching passages. Unset flags take their values from the retrieval section of the config.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var queryTenant tenantFlags

func init() {
	queryCmd.Flags().Int("top-k", 0, "maximum number of passages")
	queryCmd.Flags().Float64("min-score", 0, "minimum vector similarity")
	queryCmd.Flags().String("search-type", "", "text, vector or hybrid")
	queryCmd.Flags().Bool("no-rerank", false, "disable keyword reranking")
	queryCmd.Flags().StringVar(&queryTenant.owner, "owner", "", "owner id to search for")
	queryCmd.Flags().StringVar(&queryTenant.property, "property", "", "property id to search for")
	queryCmd.Flags().StringVar(&queryTenant.scope, "scope", "", "knowledge scope: property, owner or global")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	queryText := args[0]

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := retrievalDefaults(a.cfg)
	flags := cmd.Flags()
	if flags.Changed("top-k") {
		opts.TopK, _ = flags.GetInt("top-k")
	}
	if flags.Changed("min-score") {
		opts.MinScore, _ = flags.GetFloat64("min-score")
	}
	if flags.Changed("search-type") {
		st, _ := flags.GetString("search-type")
		opts.SearchType = searchengine.Mode(st)
	}
	if noRerank, _ := flags.GetBool("no-rerank"); noRerank {
		opts.Rerank = false
	}
	if queryTenant.scope != "" {
		opts.Scope = documents.Scope(queryTenant.scope)
	}
	opts.OwnerID = queryTenant.owner
	if opts.PropertyID, err = queryTenant.propertyID(); err != nil {
		return err
	}
	jsonOutput, _ := flags.GetBool("json")

	resp, err := a.retriever.Retrieve(ctx, queryText, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.Count == 0 {
		fmt.Println("No results found.")
		return nil
	}
	printQueryResultsTable(resp.Chunks)
	return nil
}

func printQueryResultsTable(results []retriever.Result) {
	fmt.Printf("Found %d results:\n\n", len(results))
	for i, r := range results {
		score := r.Score
		if r.RerankScore != nil {
			score = *r.RerankScore
		}
		location := fmt.Sprintf("document %d, chunk %d", r.Chunk.DocumentID, r.Chunk.ChunkIndex)
		if r.Chunk.PropertyID != nil {
			location += fmt.Sprintf(", property %d", *r.Chunk.PropertyID)
		}

		fmt.Printf("  %d. [%.3f] %s\n", i+1, score, location)
		fmt.Printf("     %s\n\n", truncate(r.Chunk.Text, 160))
	}
}
