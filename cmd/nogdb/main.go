// Package main provides the nogdb command-line entry point: a thin shell
// around the pkg/nogdb library surface for opening a database, running
// SQL statements, and dumping its schema.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nogdb/nogdb/pkg/config"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdb"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nogdb",
		Short: "nogdb is an embedded property-graph database",
		Long: `nogdb is an embedded property-graph database: classes and
properties form a schema catalog, vertices and edges are records in
that catalog, and queries are expressed either through the builder API
or a small embedded SQL-like language.`,
	}
	rootCmd.PersistentFlags().String("data-dir", "", "database directory (defaults to NOGDB_DATA_DIR or ./data)")

	rootCmd.AddCommand(openCmd(), sqlCmd(), schemaCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveOptions(cmd *cobra.Command) kv.Options {
	cfg := config.LoadFromEnv()
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return kv.Options{
		Dir:        cfg.DataDir,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
		LowMemory:  cfg.LowMemory,
	}
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open (creating if necessary) a database and report its schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := resolveOptions(cmd)
			ctx, err := nogdb.Open(opts)
			if err != nil {
				return fmt.Errorf("opening database at %q: %w", opts.Dir, err)
			}
			defer ctx.Close()

			tx := ctx.BeginTxn(nogdb.ReadOnly)
			defer tx.Rollback()
			classes := tx.Schema().Classes()

			fmt.Printf("opened %q\n", opts.Dir)
			fmt.Printf("%d class(es)\n", len(classes))
			for _, c := range classes {
				fmt.Printf("  %s (%s)\n", c.Name, c.Tag)
			}
			return nil
		},
	}
}

func sqlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Run a SQL statement, or start an interactive REPL if none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := resolveOptions(cmd)
			ctx, err := nogdb.Open(opts)
			if err != nil {
				return fmt.Errorf("opening database at %q: %w", opts.Dir, err)
			}
			defer ctx.Close()

			stmt, _ := cmd.Flags().GetString("stmt")
			if stmt != "" {
				return runStatement(ctx, stmt)
			}
			return runRepl(ctx)
		},
	}
	cmd.Flags().String("stmt", "", "a single statement to run instead of starting a REPL")
	return cmd
}

// runStatement runs src in its own read-write transaction, committing on
// success and rolling back on any error so a bad statement never leaves
// partial work behind.
func runStatement(ctx *nogdb.Context, src string) error {
	tx := ctx.BeginTxn(nogdb.ReadWrite)
	res, err := tx.SQL(src)
	if err != nil {
		tx.Rollback()
		return err
	}
	printResult(res)
	return tx.Commit()
}

func runRepl(ctx *nogdb.Context) error {
	fmt.Println("nogdb SQL REPL. One statement per line; 'exit' or EOF to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("nogdb> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := runStatement(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func printResult(res nogdb.Result) {
	if res.Plan != nil {
		p := res.Plan
		if p.UsesIndex {
			fmt.Printf("plan: index lookup on %s.%s (unique=%v)\n", p.ClassName, p.IndexProperty, p.UniqueIndex)
		} else {
			fmt.Printf("plan: full scan of %s\n", p.ClassName)
		}
		return
	}
	if res.Affected > 0 {
		fmt.Printf("%d row(s) affected\n", res.Affected)
	}
	if len(res.Path) > 0 {
		fmt.Printf("path: %v\n", res.Path)
	}
	if res.Cursor != nil {
		rows := res.Cursor.All()
		fmt.Printf("%d row(s)\n", len(rows))
		for _, row := range rows {
			fmt.Printf("  %s %v\n", row.ID, row.Properties)
		}
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect or transfer a database's schema",
	}
	cmd.AddCommand(schemaDumpCmd())
	return cmd
}

func schemaDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the schema as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := resolveOptions(cmd)
			ctx, err := nogdb.Open(opts)
			if err != nil {
				return fmt.Errorf("opening database at %q: %w", opts.Dir, err)
			}
			defer ctx.Close()

			tx := ctx.BeginTxn(nogdb.ReadOnly)
			defer tx.Rollback()
			data, err := tx.DumpSchemaYAML()
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				fmt.Print(string(data))
				return nil
			}
			return os.WriteFile(out, data, 0644)
		},
	}
	cmd.Flags().String("out", "", "write to this file instead of stdout")
	return cmd
}
