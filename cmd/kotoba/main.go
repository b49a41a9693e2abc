// Command kotoba builds and queries the dictionary store. It provides
// commands for importing lexicon sources, looking up terms, inspecting
// the store, and generating the bundled lexicon from JMdict XML.
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/meikido/kotoba/core/lexicon"
	"github.com/meikido/kotoba/internal/config"
	"github.com/meikido/kotoba/internal/ingest"
	"github.com/meikido/kotoba/internal/jmdictgen"
	"github.com/meikido/kotoba/internal/logging"
	"github.com/meikido/kotoba/internal/persist"
)

const version = "0.1.0"

// CLI defines the command-line interface for kotoba.
var CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"Configuration file path" type:"path"`
	LogLevel  string `name:"log-level" help:"Override configured log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Override configured log format (text, json)"`

	Import      ImportCmd      `cmd:"" help:"Import lexicon sources and write the dictionary store"`
	Lookup      LookupCmd      `cmd:"" help:"Look up a term in the dictionary store"`
	Info        InfoCmd        `cmd:"" help:"Show store backend and size information"`
	Migrate     MigrateCmd     `cmd:"" help:"Rebuild the paged store from the snapshot"`
	BuildJmdict BuildJmdictCmd `cmd:"" name:"build-jmdict" help:"Convert JMdict XML into bundled JSON chunks"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// loadConfig reads the configuration and initializes logging with any
// command-line overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.LogLevel = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.LogFormat = CLI.LogFormat
	}
	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	return cfg, nil
}

// ImportCmd runs a full ingestion pass and persists the result.
type ImportCmd struct{}

func (c *ImportCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := ingest.New(cfg).Run(context.Background())
	if err != nil {
		return err
	}

	if err := persist.WriteSnapshot(cfg.SnapshotPath(), store); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := persist.BuildPagedStore(cfg.PagedStorePath(), store.Snapshot()); err != nil {
		logging.MigrationFailed(cfg.PagedStorePath(), err)
	}

	fmt.Printf("imported %d entries to %s\n", store.EntryCount(), cfg.DataDir)
	return nil
}

// LookupCmd queries the persisted store for a term.
type LookupCmd struct {
	Term    string `arg:"" help:"Written form or reading to look up"`
	Reading bool   `name:"reading" short:"r" help:"Query the reading index instead of written forms"`
}

func (c *LookupCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dict, _, err := persist.Load(cfg.SnapshotPath(), cfg.PagedStorePath())
	if err != nil {
		return err
	}
	defer closeDict(dict)

	entries := queryEntries(dict, c.Term, c.Reading)
	if len(entries) == 0 {
		fmt.Printf("no entries for %q\n", c.Term)
		return nil
	}

	for _, e := range entries {
		header := strings.Join(e.WrittenForms, ", ")
		if len(e.Readings) > 0 {
			header += " [" + strings.Join(e.Readings, ", ") + "]"
		}
		if e.Source != "" {
			header += "  (" + e.Source + ")"
		}
		fmt.Println(header)

		for i, sense := range e.Senses {
			line := fmt.Sprintf("  %d. %s", i+1, strings.Join(sense.Glosses, "; "))
			if len(sense.PartOfSpeech) > 0 {
				line += "  [" + strings.Join(sense.PartOfSpeech, ", ") + "]"
			}
			fmt.Println(line)
		}

		for _, form := range e.WrittenForms {
			for _, reading := range e.Readings {
				if freq, ok := dict.FrequencyOf(form, reading); ok {
					fmt.Printf("  frequency: %s\n", freq.Display)
				}
			}
		}
	}
	return nil
}

// InfoCmd reports which backend is active and what it holds.
type InfoCmd struct{}

func (c *InfoCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dict, kind, err := persist.Load(cfg.SnapshotPath(), cfg.PagedStorePath())
	if err != nil {
		return err
	}
	defer closeDict(dict)

	fmt.Printf("backend: %s\n", kind)
	fmt.Printf("entries: %d\n", dict.EntryCount())
	fmt.Printf("rules:   %d\n", len(dict.Rules()))
	return nil
}

// MigrateCmd force-rebuilds the paged store from the snapshot, even
// when a paged store already exists.
type MigrateCmd struct{}

func (c *MigrateCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := persist.ReadSnapshot(cfg.SnapshotPath())
	if err != nil {
		return err
	}
	if err := persist.BuildPagedStore(cfg.PagedStorePath(), store.Snapshot()); err != nil {
		return fmt.Errorf("build paged store: %w", err)
	}

	fmt.Printf("migrated %d entries to %s\n", store.EntryCount(), cfg.PagedStorePath())
	return nil
}

// BuildJmdictCmd converts the JMdict XML distribution into the bundled
// JSON chunk files.
type BuildJmdictCmd struct {
	XML       string `arg:"" help:"Path to the JMdict XML file" type:"path"`
	OutDir    string `name:"out" short:"o" default:"jmdict" help:"Output directory for JSON chunks"`
	ChunkSize int    `name:"chunk-size" help:"Entries per chunk file"`
}

func (c *BuildJmdictCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	n, err := jmdictgen.Generate(c.XML, c.OutDir, jmdictgen.Options{ChunkSize: c.ChunkSize})
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d entries to %s\n", n, c.OutDir)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("kotoba version %s\n", version)
	return nil
}

// queryEntries hits exactly one index, so the paged backend pays for a
// single set of fetches per lookup.
func queryEntries(dict persist.Dictionary, term string, reading bool) []lexicon.Entry {
	if reading {
		return dict.LookupReading(term)
	}
	return dict.LookupWritten(term)
}

// closeDict releases backend resources when the active implementation
// holds any.
func closeDict(dict persist.Dictionary) {
	if closer, ok := dict.(io.Closer); ok {
		closer.Close()
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("kotoba"),
		kong.Description("Dictionary ingestion and lookup engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
