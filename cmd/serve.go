package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/hostkb/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Long:  `Starts the hostkb server with the REST API for ingestion, retrieval and chat, and the websocket chat endpoint.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.Prepare(ctx); err != nil {
		return err
	}

	registry, err := a.buildTools()
	if err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}
	asst, err := a.buildAssistant(registry)
	if err != nil {
		return err
	}
	defer asst.sessions.Close()

	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	srv := server.New(server.Config{
		Port:           port,
		AllowAll:       a.cfg.Server.AllowAllOrigins,
		RequestTimeout: a.cfg.Orchestrator.DelegateTimeout + 30*time.Second,
	}, server.Deps{
		Pipeline:          a.pipeline,
		Documents:         a.docs,
		Retriever:         a.retriever,
		Assistant:         asst.orch,
		Sessions:          asst.sessions,
		Gate:              asst.gate,
		RetrievalDefaults: retrievalDefaults(a.cfg),
	}, a.logger)

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "hostkb server v%s starting on port %d\n", Version, port)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", a.cfg.DBPath())
	fmt.Fprintf(os.Stderr, "  Search engine: %s\n", a.engine.Name())
	fmt.Fprintf(os.Stderr, "  Tools: %d\n", registry.Len())

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
