// Command schedgen elaborates a target's scheduling model from a Lua
// target-description script and prints the resulting tables, the way a
// compiler backend's TableGen pass would be invoked standalone for
// inspection or CI validation.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/minz/schedgen/pkg/recordlua"
	"github.com/minz/schedgen/pkg/sched"
	"github.com/minz/schedgen/pkg/version"
	"github.com/spf13/cobra"
)

var (
	dbPath        string
	completeCheck bool
	dumpClasses   bool
	dumpProcs     bool
	format        string
	debug         bool
	showVersion   bool
)

var rootCmd = &cobra.Command{
	Use:   "schedgen",
	Short: "elaborate a scheduling model from a record database",
	Long: `schedgen loads a target description (record database plus
instruction list) from a Lua script, runs the scheduling-model
elaboration pipeline against it, and prints the resulting tables.

It implements the CodeGenSchedule phase of a compiler backend's
TableGen pass as a standalone tool: SchedReadWrite table construction,
ProcModel resolution, SchedClass deduplication, InstRW override
application, SchedVariant fan-out, processor-resource collection, and
completeness checking.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.GetVersion())
			return nil
		}
		if dbPath == "" {
			return fmt.Errorf("--db is required")
		}
		return elaborate(dbPath)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "", "path to a Lua target-description script")
	rootCmd.Flags().BoolVar(&completeCheck, "complete-check", false, "run completeness checking and fail on violation")
	rootCmd.Flags().BoolVar(&dumpClasses, "dump-classes", false, "print the elaborated SchedClass table")
	rootCmd.Flags().BoolVar(&dumpProcs, "dump-procs", false, "print the elaborated ProcModel resource lists")
	rootCmd.Flags().StringVar(&format, "format", "text", "output encoding for dumps: text or json")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "print phase progress to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "schedgen: %v\n", err)
		os.Exit(1)
	}
}

func elaborate(path string) error {
	if debug {
		fmt.Fprintf(os.Stderr, "loading %s\n", path)
	}
	db, tgt, err := recordlua.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	e := sched.New(db, tgt)
	e.Debug = debug
	e.CompleteCheck = completeCheck
	if err := e.Run(); err != nil {
		return fmt.Errorf("elaboration: %w", err)
	}
	for _, w := range e.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if dumpClasses {
		if err := dump(e.Classes); err != nil {
			return err
		}
	}
	if dumpProcs {
		if err := dump(e.ProcModels); err != nil {
			return err
		}
	}
	return nil
}

func dump(v any) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	switch items := v.(type) {
	case []*sched.SchedClass:
		for _, c := range items {
			fmt.Println(c.String())
		}
	case []*sched.ProcModel:
		for _, p := range items {
			fmt.Println(p.String())
		}
	}
	return nil
}
