package cmd

import "github.com/spf13/cobra"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hostkb",
	Short: "Knowledge base and assistant for short-term rental hosts",
	Long: `hostkb ingests property listings and owner handbooks into a searchable
knowledge base, retrieves from it with hybrid text and vector search, and
answers guest and host questions through a tool-using assistant over HTTP,
a websocket, MCP or the terminal.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".hostkb.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
