// petpal is the companion service entrypoint.
//
// Environment variables:
//
//	PETPAL_DB_PATH      — SQLite database path (default: ./data/petpal.db)
//	PETPAL_CATALOG      — optional story catalog YAML (default: embedded)
//	PETPAL_ADDR         — HTTP listen address (default: :8000)
//	GROQ_API_KEY        — Groq API key for the text generator
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/petpalhq/petpal"
	"github.com/petpalhq/petpal/server"
)

func main() {
	root := &cobra.Command{
		Use:   "petpal",
		Short: "PetPal companion chatbot service",
	}
	root.AddCommand(serveCmd(), validateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP companion service",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("GROQ_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("GROQ_API_KEY is required")
			}

			companion, err := petpal.Init(petpal.Config{
				DBPath:      envOr("PETPAL_DB_PATH", "./data/petpal.db"),
				CatalogPath: os.Getenv("PETPAL_CATALOG"),
				GroqAPIKey:  apiKey,
			})
			if err != nil {
				// Catalog problems land here: refuse to take traffic.
				return fmt.Errorf("petpal init: %w", err)
			}
			defer companion.Close()

			return server.New(companion).Start(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("PETPAL_ADDR", ":8000"), "HTTP listen address")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog.yaml]",
		Short: "Validate a story catalog file (or the embedded default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			catalog, err := petpal.LoadCatalog(path)
			if err != nil {
				return err
			}
			log.Printf("[petpal] Catalog OK: %d stories", catalog.Len())
			for _, st := range catalog.Stories() {
				fmt.Printf("%-16s theme=%s\n", st.ID, st.Theme)
			}
			return nil
		},
	}
}
