// Command acorncli is a thin example binary embedding AcornDB: a cobra
// root command plus subcommands over a data directory. It is not a
// general-purpose AcornDB CLI surface; it exists to show a Go program
// opening a Collection, putting/getting documents, and running a query
// against it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/acorndb/pkg/backend/filekv"
	"github.com/cuemby/acorndb/pkg/collection"
	"github.com/cuemby/acorndb/pkg/config"
	"github.com/cuemby/acorndb/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "acorncli",
	Short:   "acorncli - inspect and drive an AcornDB collection on disk",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("acorncli version %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("data", "./acorn-data", "directory holding one sub-directory per collection")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	for _, cmd := range []*cobra.Command{putCmd, getCmd, deleteCmd, listCmd, explainCmd} {
		rootCmd.AddCommand(cmd)
	}

	putCmd.Flags().String("id", "", "explicit document id (required: map payloads carry no extractable id)")
	_ = putCmd.MarkFlagRequired("id")

	listCmd.Flags().String("where-eq", "", "optional property=value equality filter, e.g. status=active")
}

// doc is the element type this CLI opens its Collections with: a plain JSON
// object, since acorncli has no compiled-in document schema.
type doc = map[string]any

func openCollection(cmd *cobra.Command, name string) (*collection.Collection[doc], error) {
	level, _ := cmd.Flags().GetString("log-level")
	log.Init(log.Config{Level: log.Level(level)})

	dataDir, _ := cmd.Flags().GetString("data")
	be, err := filekv.New(dataDir + "/" + name)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	return collection.New[doc](name, be).
		WithOptions(config.WithNodeID("acorncli")).
		Open()
}

var putCmd = &cobra.Command{
	Use:   "put COLLECTION JSON",
	Short: "Write a document under --id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		defer col.Dispose()

		var payload doc
		if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
			return fmt.Errorf("parse JSON payload: %w", err)
		}

		id, _ := cmd.Flags().GetString("id")
		if err := col.PutWithID(context.Background(), id, payload); err != nil {
			return fmt.Errorf("put: %w", err)
		}
		fmt.Printf("stored %s/%s\n", args[0], id)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get COLLECTION ID",
	Short: "Read a document by id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		defer col.Dispose()

		got, ok, err := col.Get(context.Background(), args[1])
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		out, _ := json.MarshalIndent(got, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete COLLECTION ID",
	Short: "Remove a document by id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		defer col.Dispose()

		if err := col.Delete(context.Background(), args[1], true); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Printf("deleted %s/%s\n", args[0], args[1])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list COLLECTION",
	Short: "List every document, optionally filtered by --where-eq prop=value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		defer col.Dispose()

		docs, err := col.ExportChanges()
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		whereEq, _ := cmd.Flags().GetString("where-eq")
		prop, want, filtering := splitEq(whereEq)

		for _, d := range docs {
			if filtering {
				if got, ok := d[prop]; !ok || fmt.Sprint(got) != want {
					continue
				}
			}
			out, _ := json.Marshal(d)
			fmt.Println(string(out))
		}
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain COLLECTION",
	Short: "Print the query planner's chosen strategy for an empty query (diagnostic: shows full-scan cost)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		defer col.Dispose()

		plan := col.Query().Explain()
		fmt.Printf("strategy=%s cost=%.4f rows_examined=%d\n", plan.Strategy, plan.Cost, plan.EstimatedRowsExamined)
		fmt.Println(plan.Explanation)
		return nil
	},
}

func splitEq(s string) (prop, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
