package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/hostkb/internal/mcp"
)

var (
	mcpTenant tenantFlags
	mcpNoAsk  bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing the
knowledge search, property lookup, distance and web search tools to AI agents.
Every call runs for the owner and property given by --owner and --property.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTenant.owner, "owner", "", "owner id the tools act for")
	mcpCmd.Flags().StringVar(&mcpTenant.property, "property", "", "property id the tools act for")
	mcpCmd.Flags().StringVar(&mcpTenant.scope, "scope", "", "knowledge scope: property, owner or global (default from config)")
	mcpCmd.Flags().BoolVar(&mcpNoAsk, "no-assistant", false, "do not expose the ask_host_assistant tool")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	scope, err := mcpTenant.toolScope(a.cfg.Retrieval.KBScope)
	if err != nil {
		return err
	}

	registry, err := a.buildTools()
	if err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	opts := []mcpserver.Option{mcpserver.WithLogger(a.logger)}
	if !mcpNoAsk {
		asst, err := a.buildAssistant(registry)
		if err != nil {
			return err
		}
		defer asst.sessions.Close()
		opts = append(opts, mcpserver.WithAssistant(asst.orch))
	}

	// Set version from the cmd package variable.
	mcpserver.Version = Version

	srv := mcpserver.NewServer(registry, scope, opts...)
	fmt.Fprintf(os.Stderr, "hostkb MCP server started on stdio (tools=%v)\n", srv.ToolNames())
	return srv.Serve()
}
