// Command sched-repl is an interactive inspector over an elaborated
// scheduling model: class/proc/instr/find commands against an
// already-run Elaborator, without re-running the whole pipeline for
// every query.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/minz/schedgen/pkg/readline"
	"github.com/minz/schedgen/pkg/recordlua"
	"github.com/minz/schedgen/pkg/replutil"
	"github.com/minz/schedgen/pkg/sched"
	"github.com/spf13/cobra"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "sched-repl",
	Short: "interactive inspector for an elaborated scheduling model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return fmt.Errorf("--db is required")
		}
		return run(dbPath)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "", "path to a Lua target-description script")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sched-repl: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	db, tgt, err := recordlua.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	e := sched.New(db, tgt)
	if err := e.Run(); err != nil {
		return fmt.Errorf("elaboration: %w", err)
	}
	for _, w := range e.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	homeDir, _ := os.UserHomeDir()
	historyFile := ""
	if homeDir != "" {
		historyFile = filepath.Join(homeDir, ".sched_repl_history")
	}
	reader := readline.NewReader(&readline.Config{
		Prompt:      "sched> ",
		HistoryFile: historyFile,
	})

	session := replutil.New(e, os.Stdout)
	return session.Run(reader)
}
