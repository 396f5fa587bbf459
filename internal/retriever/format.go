package retriever

import (
	"fmt"
	"strings"
)

// FormatResults renders retrieved chunks as plain text for prompts, tool
// output and the CLI.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No matching passages found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d passage(s):\n\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "--- Passage %d (score: %.4f", i+1, r.Score)
		if r.RerankScore != nil {
			fmt.Fprintf(&sb, ", reranked: %.4f", *r.RerankScore)
		}
		sb.WriteString(") ---\n")
		fmt.Fprintf(&sb, "Document: %d, chunk %d\n", r.Chunk.DocumentID, r.Chunk.ChunkIndex)
		if r.Chunk.PropertyID != nil {
			fmt.Fprintf(&sb, "Property: %d\n", *r.Chunk.PropertyID)
		}
		sb.WriteString("\n")
		sb.WriteString(r.Chunk.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
