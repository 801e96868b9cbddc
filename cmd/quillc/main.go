// quillc is the quill compiler front-end driver: it discovers sources,
// parses and type-checks them against the module archive store, and either
// reports diagnostics, interprets the program, or manages stored modules.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oxhq/quill/internal/config"
)

func main() {
	// A repo-local .env may carry QUILL_* settings; absence is fine.
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	root := &cobra.Command{
		Use:           "quillc",
		Short:         "Compiler front-end for the quill language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose store logging")
	root.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "module archive store (file path or libsql URL)")

	root.AddCommand(newCheckCmd(cfg))
	root.AddCommand(newRunCmd(cfg))
	root.AddCommand(newModuleCmd(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
