package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document and its chunks from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid document id %q", args[0])
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.Delete(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(res.Failures) > 0 {
			fmt.Printf("Removed %d chunks of document %d; %d could not be removed, the document was kept:\n", res.Deleted, res.DocumentID, len(res.Failures))
			for _, f := range res.Failures {
				fmt.Printf("  %s\n", f)
			}
			return fmt.Errorf("partial deletion of document %d", res.DocumentID)
		}
		fmt.Printf("Deleted document %d (%d chunks removed)\n", res.DocumentID, res.Deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
