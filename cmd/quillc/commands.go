package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/db"
	"github.com/oxhq/quill/internal/analyzer"
	"github.com/oxhq/quill/internal/archive"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/config"
	"github.com/oxhq/quill/internal/interp"
	"github.com/oxhq/quill/internal/parser"
)

// loadPrograms discovers and parses every source file in scope. Parse
// diagnostics land in the session's parse queue.
func loadPrograms(cfg *config.Config, session *analyzer.Session, paths []string) ([]*ast.Program, error) {
	if len(paths) == 0 {
		found, err := core.NewSourceWalker().Walk(context.Background(), core.SourceScope{
			Root:            cfg.SourceRoot,
			IncludePatterns: cfg.IncludePatterns,
			ExcludePatterns: cfg.ExcludePatterns,
		})
		if err != nil {
			return nil, err
		}
		paths = found
	}
	if len(paths) == 0 {
		return nil, core.CLIError{Code: core.ErrIO, Message: "no source files found"}
	}

	var progs []*ast.Program
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, core.Wrap(core.ErrIO, "reading "+path, err)
		}
		prog, diags := parser.Parse(path, string(src))
		for _, d := range diags {
			session.Sink.AddParse(d)
		}
		progs = append(progs, prog)
	}
	return progs, nil
}

// openSession connects the archive store and seeds a session with every
// stored dependency module.
func openSession(cfg *config.Config) (*analyzer.Session, *gorm.DB, error) {
	conn, err := db.Connect(cfg.DBPath, cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	session := analyzer.NewSession()
	rows, err := db.ListModules(conn)
	if err != nil {
		return nil, nil, err
	}
	for i := range rows {
		api, err := rows[i].API()
		if err != nil {
			return nil, nil, err
		}
		session.AddDependency(api)
	}
	return session, conn, nil
}

func newCheckCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check [files...]",
		Short: "Type-check quill sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, err := openSession(cfg)
			if err != nil {
				return err
			}
			session.SetSelfModule(cfg.Namespace, "main")
			progs, err := loadPrograms(cfg, session, args)
			if err != nil {
				return err
			}
			session.Analyze(progs...)
			if status := session.Sink.Flush(cmd.ErrOrStderr()); status != 0 {
				os.Exit(status)
			}
			return nil
		},
	}
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run [files...]",
		Short: "Type-check and interpret a quill program",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, err := openSession(cfg)
			if err != nil {
				return err
			}
			session.SetSelfModule(cfg.Namespace, "main")
			progs, err := loadPrograms(cfg, session, args)
			if err != nil {
				return err
			}
			tab := session.Analyze(progs...)
			if status := session.Sink.Flush(cmd.ErrOrStderr()); status != 0 {
				os.Exit(status)
			}
			return interp.New(session, tab, cmd.OutOrStdout()).Run(progs...)
		},
	}
}

func newModuleCmd(cfg *config.Config) *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:   "module",
		Short: "Manage the module archive store",
	}

	moduleCmd.AddCommand(&cobra.Command{
		Use:   "add <archive>",
		Short: "Import a module archive into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return core.Wrap(core.ErrIO, "reading archive", err)
			}
			row, err := archive.Decode(data)
			if err != nil {
				return err
			}
			conn, err := db.Connect(cfg.DBPath, cfg.Debug)
			if err != nil {
				return err
			}
			if err := db.SaveModule(conn, row); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s/%s\n", row.Namespace, row.Name)
			return nil
		},
	})

	moduleCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Connect(cfg.DBPath, cfg.Debug)
			if err != nil {
				return err
			}
			rows, err := db.ListModules(conn)
			if err != nil {
				return err
			}
			for _, m := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%d exported procedure(s)\n", m.Namespace, m.Name, countProcs(m.Procedures))
			}
			return nil
		},
	})

	var outPath string
	export := &cobra.Command{
		Use:   "export <namespace> <name>",
		Short: "Export a stored module as an archive file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Connect(cfg.DBPath, cfg.Debug)
			if err != nil {
				return err
			}
			row, err := db.FindModule(conn, args[0], args[1])
			if err != nil {
				return err
			}
			data, err := archive.Encode(row)
			if err != nil {
				return err
			}
			path := outPath
			if path == "" {
				path = args[0] + "_" + args[1] + ".qar"
			}
			writer := core.NewAtomicWriter(core.DefaultAtomicConfig())
			if err := writer.WriteFile(path, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "output path (defaults to <namespace>_<name>.qar)")
	moduleCmd.AddCommand(export)

	return moduleCmd
}

func countProcs(raw []byte) int {
	var procs []analyzer.ExportedProc
	if err := json.Unmarshal(raw, &procs); err != nil {
		return 0
	}
	return len(procs)
}
