package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/marcin-laskowski/Feature-Engineering/logging"
	"github.com/marcin-laskowski/Feature-Engineering/primitives"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
	"github.com/marcin-laskowski/Feature-Engineering/store"
	"github.com/marcin-laskowski/Feature-Engineering/synth"
)

// ============================================================================
// FEATSYN CLI — Deep feature synthesis over related CSV tables
// ============================================================================

const version = "0.1.0"

// repeatFlag collects a flag given multiple times.
type repeatFlag []string

func (f *repeatFlag) String() string     { return strings.Join(*f, ",") }
func (f *repeatFlag) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	var entityFlags, relFlags repeatFlag

	configPath := flag.String("config", "", "Path to YAML run config")
	flag.Var(&entityFlags, "entity", "Entity as name=path/to.csv (repeatable)")
	flag.Var(&relFlags, "relationship", "Relationship as parent.col=child.col (repeatable)")
	target := flag.String("target", "", "Target entity (default: first entity)")
	maxDepth := flag.Int("max-depth", 2, "Max primitives stacked per feature")
	maxFeatures := flag.Int("max-features", 0, "Truncate the feature list (0 = unlimited)")
	aggList := flag.String("agg", "", "Comma-separated aggregation primitives")
	transList := flag.String("trans", "", "Comma-separated transform primitives")
	discover := flag.Bool("discover", false, "Print inferred schemas and exit")
	listPrims := flag.Bool("list-primitives", false, "Print available primitives and exit")
	format := flag.String("format", "csv", "Output format: csv, json, pretty, text")
	outFile := flag.String("out", "", "Write output to file instead of stdout")
	headRows := flag.Int("head", 0, "Limit output to the first N rows")
	savePath := flag.String("save", "", "Persist the run to a SQLite database at this path")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `featsyn — deep feature synthesis for relational CSV data

Usage:
  featsyn --config run.yaml --format csv --out features.csv
  featsyn --entity clients=clients.csv --entity loans=loans.csv \
          --relationship clients.client_id=loans.client_id \
          --target clients --max-depth 2
  featsyn --entity loans=loans.csv --discover --format pretty
  featsyn --list-primitives

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Formats:
  csv       Feature matrix as CSV, index first (default)
  json      Matrix, features, and null cells as JSON
  pretty    Pretty-printed JSON
  text      Fixed-width matrix preview

Examples:
  # Full run from a config file, saved for later
  featsyn --config run.yaml --save runs.db --out features.csv

  # Automated synthesis with default primitives
  featsyn --entity clients=clients.csv --entity loans=loans.csv \
          --relationship clients.client_id=loans.client_id --format text --head 5

  # Pick primitives by hand
  featsyn --config run.yaml --agg mean,max,last --trans year,month
`)
	}

	flag.Parse()
	log := logging.WithComponent("cli")

	if *showVersion {
		fmt.Printf("featsyn %s\n", version)
		os.Exit(0)
	}

	// ── Output writer ─────────────────────────────────────────────────────
	writer := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			fatalf("failed to create output file: %v", err)
		}
		defer f.Close()
		writer = f
	}

	if *listPrims {
		writePrimitives(writer, *format)
		return
	}

	// ── Run config ────────────────────────────────────────────────────────
	cfg, err := resolveConfig(*configPath, entityFlags, relFlags, *target)
	if err != nil {
		fatalf("%v", err)
	}
	if *maxDepth != 2 || cfg.MaxDepth == 0 {
		cfg.MaxDepth = *maxDepth
	}
	if *maxFeatures > 0 {
		cfg.MaxFeatures = *maxFeatures
	}
	if *aggList != "" {
		cfg.AggPrimitives = splitList(*aggList)
	}
	if *transList != "" {
		cfg.TransPrimitives = splitList(*transList)
	}
	if *target != "" {
		cfg.Target = *target
	}

	// ── Discover mode ─────────────────────────────────────────────────────
	if *discover {
		if err := writeSchemas(writer, cfg, *format); err != nil {
			fatalf("%v", err)
		}
		return
	}

	// ── Synthesis ─────────────────────────────────────────────────────────
	es, err := cfg.BuildEntitySet()
	if err != nil {
		fatalf("failed to build entity set: %v", err)
	}
	log.Info().
		Str("entityset", es.Name).
		Int("entities", len(es.Entities())).
		Int("relationships", len(es.Relationships())).
		Msg("entity set loaded")

	opts := []synth.Option{
		synth.WithMaxDepth(cfg.MaxDepth),
	}
	if cfg.MaxFeatures > 0 {
		opts = append(opts, synth.WithMaxFeatures(cfg.MaxFeatures))
	}
	if cfg.Workers > 0 {
		opts = append(opts, synth.WithWorkers(cfg.Workers))
	}
	if len(cfg.AggPrimitives) > 0 {
		opts = append(opts, synth.WithAggPrimitives(cfg.AggPrimitives...))
	}
	if len(cfg.TransPrimitives) > 0 {
		opts = append(opts, synth.WithTransPrimitives(cfg.TransPrimitives...))
	}

	ctx := context.Background()
	matrix, err := synth.DFS(ctx, es, cfg.Target, opts...)
	if err != nil {
		fatalf("synthesis failed: %v", err)
	}

	if *savePath != "" {
		s, err := store.Open(*savePath)
		if err != nil {
			fatalf("failed to open run store: %v", err)
		}
		defer s.Close()
		id, err := s.SaveRun(ctx, es.Name, cfg.MaxDepth, matrix)
		if err != nil {
			fatalf("failed to save run: %v", err)
		}
		log.Info().Str("run_id", id).Str("db", *savePath).Msg("run saved")
	}

	if *headRows > 0 {
		matrix = matrix.Head(*headRows)
	}

	// ── Render output ─────────────────────────────────────────────────────
	switch *format {
	case "csv":
		if err := matrix.WriteCSV(writer); err != nil {
			fatalf("failed to write CSV: %v", err)
		}
		if *outFile != "" {
			log.Info().Str("path", *outFile).Msg("matrix written")
		}
	case "text":
		fmt.Fprint(writer, matrix.RenderText(20, 8))
	case "json", "pretty":
		writeJSON(writer, matrix, *format)
	default:
		fatalf("unknown format %q", *format)
	}
}

// resolveConfig builds the run config from a YAML file or from
// --entity/--relationship flags.
func resolveConfig(path string, entities, rels repeatFlag, target string) (*Config, error) {
	if path != "" {
		if len(entities) > 0 || len(rels) > 0 {
			return nil, fmt.Errorf("--config cannot be combined with --entity/--relationship")
		}
		return LoadConfig(path)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("either --config or at least one --entity is required")
	}

	cfg := &Config{Target: target}
	for _, spec := range entities {
		name, csvPath, ok := strings.Cut(spec, "=")
		if !ok || name == "" || csvPath == "" {
			return nil, fmt.Errorf("invalid --entity %q, want name=path", spec)
		}
		cfg.Entities = append(cfg.Entities, EntityConfig{Name: name, Path: csvPath})
	}
	for _, spec := range rels {
		parent, child, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --relationship %q, want parent.col=child.col", spec)
		}
		cfg.Relationships = append(cfg.Relationships, RelationshipConfig{Parent: parent, Child: child})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeSchemas prints the inferred schema of every configured entity.
func writeSchemas(w *os.File, cfg *Config, format string) error {
	schemas := make([]*schema.TableSchema, 0, len(cfg.Entities))
	for _, ec := range cfg.Entities {
		data, err := os.ReadFile(ec.Path)
		if err != nil {
			return fmt.Errorf("entity %q: %w", ec.Name, err)
		}
		ts, err := schema.Infer(data, schema.InferOptions{
			Name:      ec.Name,
			Index:     ec.Index,
			TimeIndex: ec.TimeIndex,
		})
		if err != nil {
			return fmt.Errorf("entity %q: %w", ec.Name, err)
		}
		schemas = append(schemas, ts)
	}
	if format == "text" {
		for _, ts := range schemas {
			fmt.Fprintf(w, "%s (index: %s, time index: %s)\n", ts.Name, orDash(ts.Index), orDash(ts.TimeIndex))
			for _, c := range ts.Columns {
				fmt.Fprintf(w, "  %-24s %s\n", c.Key, c.TypeName)
			}
			for _, s := range ts.SkippedColumns {
				fmt.Fprintf(w, "  %-24s skipped (%s)\n", s.Column, s.Reason)
			}
		}
		return nil
	}
	writeJSON(w, schemas, format)
	return nil
}

// writePrimitives prints the primitive registry.
func writePrimitives(w *os.File, format string) {
	infos := primitives.List()
	if format == "json" || format == "pretty" {
		writeJSON(w, infos, format)
		return
	}
	for _, p := range infos {
		fmt.Fprintf(w, "%-14s %-12s %s\n", p.Name, p.Kind, p.Description)
	}
}

// ============================================================================
// OUTPUT HELPERS
// ============================================================================

func writeJSON(w *os.File, v interface{}, format string) {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}

	if err != nil {
		fatalf("failed to marshal output: %v", err)
	}
	fmt.Fprintln(w, string(out))
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
