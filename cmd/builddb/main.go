package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/database"
	"github.com/chemist/builddb/pkg/log"
	"github.com/chemist/builddb/pkg/metrics"
	"github.com/chemist/builddb/pkg/ops"
	"github.com/chemist/builddb/pkg/pool"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "builddb",
	Short: "builddb - incremental build database and scheduler",
	Long: `builddb runs a manifest of shell-backed build rules through an
incremental, dependency-tracked scheduler: targets whose dependencies
haven't changed since the last run are skipped rather than re-executed.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("state-dir", "./.builddb", "Directory for the build database's journal")
	rootCmd.PersistentFlags().Int("jobs", 4, "Maximum number of rules to execute concurrently")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(validateCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// openDatabase loads the manifest named by --manifest, wires a FileOps
// collaborator and a bounded worker pool over it, and hands the open
// Database to fn. The metrics HTTP server, if requested, is started
// before fn runs and left serving for its duration.
func openDatabase(cmd *cobra.Command, fn func(db *database.Database, m *manifest) error) error {
	manifestPath, _ := cmd.Flags().GetString("manifest")
	stateDir, _ := rootCmd.PersistentFlags().GetString("state-dir")
	jobs, _ := rootCmd.PersistentFlags().GetInt("jobs")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	log.WithComponent("cli").Info().Str("manifest", manifestPath).Int("rules", len(m.Rules)).Msg("loaded manifest")

	if metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(metricsAddr, metrics.Handler()); err != nil {
				log.WithComponent("cli").Error().Err(err).Msg("metrics server exited")
			}
		}()
		log.WithComponent("cli").Info().Str("addr", metricsAddr).Msg("serving /metrics")
	}

	cfg := database.Config{
		Dir:  stateDir,
		Ops:  ops.NewFileOps(m.toOpsRules()),
		Pool: pool.New(jobs),
	}

	return database.WithDatabase(cfg, func(db *database.Database) error {
		return fn(db, m)
	})
}

var buildCmd = &cobra.Command{
	Use:   "build [target...]",
	Short: "Build the given targets (or every rule's target, if none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return openDatabase(cmd, func(db *database.Database, m *manifest) error {
			names := args
			if len(names) == 0 {
				names = m.targets()
			}

			keys := make([]buildtypes.Key, len(names))
			for i, n := range names {
				keys[i] = ops.FileKey(n)
			}

			values, err := db.Build(keys)
			if err != nil {
				return err
			}

			for i, n := range names {
				fmt.Printf("%s: %s\n", n, values[i].Tag())
			}

			p := db.Progress()
			fmt.Printf("\nbuilt=%d skipped=%d errored=%d (step %d)\n", p.Built, p.Skipped, p.Errored, db.Step())
			return nil
		})
	},
}

func init() {
	buildCmd.Flags().String("manifest", "builddb.yaml", "Path to the build manifest")
	buildCmd.Flags().String("metrics-addr", "", "Address to serve /metrics on (disabled if empty)")
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the last-recorded dependency graph as Graphviz DOT",
	RunE: func(cmd *cobra.Command, args []string) error {
		return openDatabase(cmd, func(db *database.Database, m *manifest) error {
			fmt.Println(db.DebugGraph())
			return nil
		})
	},
}

func init() {
	graphCmd.Flags().String("manifest", "builddb.yaml", "Path to the build manifest")
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Dump the status map as JSON in dependency order, steps ranked most-recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return openDatabase(cmd, func(db *database.Database, m *manifest) error {
			data, err := db.ShowJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		})
	},
}

func init() {
	showCmd.Flags().String("manifest", "builddb.yaml", "Path to the build manifest")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-probe every Ready key's stored collaborator and report drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		return openDatabase(cmd, func(db *database.Database, m *manifest) error {
			if err := db.CheckValid(); err != nil {
				return err
			}
			fmt.Println("no drift detected")
			return nil
		})
	},
}

func init() {
	validateCmd.Flags().String("manifest", "builddb.yaml", "Path to the build manifest")
}
