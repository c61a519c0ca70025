package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/uktransitdata/corpus-pipeline/config"
	"github.com/uktransitdata/corpus-pipeline/logging"
	"github.com/uktransitdata/corpus-pipeline/model"
	"github.com/uktransitdata/corpus-pipeline/naptan"
	"github.com/uktransitdata/corpus-pipeline/pipeline"
	"github.com/uktransitdata/corpus-pipeline/stops"
)

var (
	configFile  string
	dataDirFlag string
	logLevel    string
	logFormat   string
	concurrent  int
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "corpus-builder",
		Short: "UK transit reference data corpus builder",
		Long: `corpus-builder ingests NPTG, NaPTAN, NOC and TNDS TransXChange reference
data and produces a normalised, slug-keyed JSON/GeoJSON corpus suitable for
static hosting.

Examples:
  corpus-builder all
  corpus-builder fetch
  corpus-builder convert
  corpus-builder emit --config corpus.yaml`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Override output.dataDir from the config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override logging.format (text, json)")
	rootCmd.PersistentFlags().IntVar(&concurrent, "concurrent", 0, "Override tnds.concurrentDocuments (0 = use config)")

	rootCmd.AddCommand(
		fetchCmd(),
		convertCmd(),
		emitCmd(),
		mergeCmd(),
		stopsCmd(),
		allCmd(),
		generateConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadPipeline builds the config and logger shared by every subcommand,
// applying any CLI overrides, and constructs a Pipeline evaluating
// freshness against the current moment.
func loadPipeline() (*pipeline.Pipeline, *config.PipelineConfig, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if dataDirFlag != "" {
		cfg.Output.DataDir = dataDirFlag
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if concurrent > 0 {
		cfg.TNDS.ConcurrentDocuments = concurrent
	}

	log := logging.NewLogger(logging.LoggerConfig{
		Level:     parseLogLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Component: "corpus-builder",
	})
	logging.SetDefaultLogger(log)

	return pipeline.New(cfg, log, time.Now()), cfg, nil
}

func parseLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Mirror newer-than-local TNDS archives over FTP and extract them",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadPipeline()
			if err != nil {
				return err
			}
			files, err := p.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			fmt.Printf("fetched %d TNDS documents\n", len(files))
			return nil
		},
	}
}

func convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Normalise every extracted TNDS document into its JSON artefacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadPipeline()
			if err != nil {
				return err
			}
			regionRoot := filepath.Join(cfg.Output.DataDir, "tnds")
			files, err := discoverXMLFiles(regionRoot)
			if err != nil {
				return fmt.Errorf("discover TNDS documents: %w", err)
			}
			result, err := p.Convert(cmd.Context(), files, regionRoot, time.Now())
			if err != nil {
				return fmt.Errorf("convert failed: %w", err)
			}
			if err := p.Gate().PersistSkiplist(filepath.Join(regionRoot, "tnds_out_of_date.json")); err != nil {
				return fmt.Errorf("persist freshness skiplist: %w", err)
			}
			fmt.Printf("processed %d documents (%d skipped, %d failed), %d slugs\n",
				result.Processed, result.Skipped, result.Failed, len(result.SlugIndex))
			return nil
		},
	}
}

func emitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emit",
		Short: "Fetch and emit the NPTG, NaPTAN, NOC and BODS collaborator artefacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadPipeline()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			nptgResult, err := p.FetchNPTG(ctx)
			if err != nil {
				return fmt.Errorf("nptg fetch failed: %w", err)
			}
			localityNames := make(map[string]string, len(nptgResult.Localities))
			for _, loc := range nptgResult.Localities {
				localityNames[loc.Code] = loc.Name
			}

			naptanResult, err := p.FetchNaPTAN(ctx, localityNames)
			if err != nil {
				return fmt.Errorf("naptan fetch failed: %w", err)
			}

			operators, err := p.FetchNOC(ctx)
			if err != nil {
				return fmt.Errorf("noc fetch failed: %w", err)
			}

			existing, err := pipeline.LoadBODSMapping(cfg.Output.DataDir)
			if err != nil {
				return fmt.Errorf("load existing bods mapping: %w", err)
			}
			if _, err := p.FetchBODS(ctx, existing); err != nil {
				fmt.Fprintf(os.Stderr, "bods fetch failed, continuing without it: %v\n", err)
			}

			fmt.Printf("emitted %d localities, %d stop points, %d operators\n",
				len(nptgResult.Localities), len(naptanResult.StopPoints), len(operators))
			return nil
		},
	}
}

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge the local slug index with the previously published snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadPipeline()
			if err != nil {
				return err
			}
			regionRoot := filepath.Join(cfg.Output.DataDir, "tnds")
			local, err := loadSlugIndexFromDocuments(regionRoot)
			if err != nil {
				return fmt.Errorf("load local slug bundles: %w", err)
			}
			merged, err := p.Merge(cmd.Context(), local, time.Now())
			if err != nil {
				return fmt.Errorf("merge failed: %w", err)
			}
			fmt.Printf("merged slug index holds %d slugs\n", len(merged))
			return nil
		},
	}
}

func stopsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stops",
		Short: "Reconcile the accumulated TNDS stop set against NaPTAN",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadPipeline()
			if err != nil {
				return err
			}
			tnds, err := loadShardedStops(filepath.Join(cfg.Output.DataDir, "tnds", "stopPoints"))
			if err != nil {
				return fmt.Errorf("load sharded stop records: %w", err)
			}
			naptanStops, err := loadNaptanStops(cfg.Output.DataDir)
			if err != nil {
				return fmt.Errorf("load naptan stop points: %w", err)
			}
			if err := p.ReconcileStops(tnds, naptanStops); err != nil {
				return fmt.Errorf("stop reconciliation failed: %w", err)
			}
			fmt.Printf("reconciled %d TNDS stops against %d NaPTAN stops\n", len(tnds), len(naptanStops))
			return nil
		},
	}
}

func allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the full fetch, convert, emit, merge and stops pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadPipeline()
			if err != nil {
				return err
			}
			if err := p.Run(cmd.Context(), time.Now()); err != nil {
				return fmt.Errorf("pipeline run failed: %w", err)
			}
			fmt.Println("pipeline run complete")
			return nil
		},
	}
}

func generateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config [file]",
		Short: "Generate a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "corpus-builder.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.GenerateDefaultConfigFile(path); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Printf("generated default configuration file: %s\n", path)
			return nil
		},
	}
}

// discoverXMLFiles walks root (in sorted order) collecting every .xml
// file outside the _archives directory where Fetch stages downloaded
// zips land.
func discoverXMLFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == "_archives" || d.Name() == "stopPoints" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ".xml" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadSlugIndexFromDocuments reads every per-document slug bundle
// (`<stem>.json`) written by the convert stage and unions them into one
// local slug index for the merge stage, skipping the intermediate
// `_<stem>.json`, `<stem>.timetables.json`, and the run's own aggregate
// artefacts.
func loadSlugIndexFromDocuments(regionRoot string) (map[model.Slug][]model.ServiceRecord, error) {
	index := make(map[model.Slug][]model.ServiceRecord)

	err := filepath.WalkDir(regionRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == "_archives" || d.Name() == "stopPoints" {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if strings.ToLower(filepath.Ext(name)) != ".json" || strings.HasPrefix(name, "_") ||
			strings.HasSuffix(name, ".timetables.json") {
			return nil
		}
		switch name {
		case "all_slugs.json", "stops_tnds_only.json", "all_stop_points.json", "tnds_out_of_date.json":
			return nil
		}

		data, err := os.ReadFile(path) //nolint:gosec // path built from a directory walk under the configured data dir
		if err != nil {
			return err
		}
		var bundle map[model.Slug][]model.ServiceRecord
		if err := json.Unmarshal(data, &bundle); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for slug, records := range bundle {
			index[slug] = append(index[slug], records...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

func loadShardedStops(dir string) (map[string]*stops.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*stops.Record{}, nil
		}
		return nil, err
	}

	records := make(map[string]*stops.Record, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name())) //nolint:gosec // path built from a directory listing
		if err != nil {
			return nil, err
		}
		var rec stops.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		records[rec.AtcoCode] = &rec
	}
	return records, nil
}

func loadNaptanStops(dataDir string) ([]naptan.StopPoint, error) {
	path := filepath.Join(dataDir, "naptan", "stop_points.json")
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a configured data directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var points []naptan.StopPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return points, nil
}
