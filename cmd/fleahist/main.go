package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fleahist/internal/config"
	"fleahist/internal/crawler"
	"fleahist/internal/domain"
	"fleahist/internal/log"
	"fleahist/internal/search"
	"fleahist/internal/source/replay"
	"fleahist/internal/store"
	"fleahist/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var (
		showVersion bool
		soldOnly    bool
		boughtOnly  bool
		full        bool
		query       string
		fixture     string
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&soldOnly, "S", false, "collect sold records only")
	flag.BoolVar(&boughtOnly, "B", false, "collect bought records only")
	flag.BoolVar(&full, "full", false, "revisit every page instead of stopping at cached records")
	flag.StringVar(&query, "search", "", "search cached records instead of collecting")
	flag.StringVar(&fixture, "replay", "", "replay a recorded session from a fixture file")
	flag.Parse()

	if showVersion {
		fmt.Printf("fleahist %s\n", Version)
		return
	}

	if err := run(soldOnly, boughtOnly, full, query, fixture); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(soldOnly, boughtOnly, full bool, query, fixture string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	logger, err := log.Setup(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.Null()
	}
	slog.SetDefault(logger)

	logger.Info("starting fleahist", "version", Version)

	st, err := store.OpenOrMigrate(cfg.Data.CacheFile)
	if err != nil {
		return err
	}
	defer st.Close()

	if query != "" {
		return runSearch(st, logger, query)
	}

	if fixture == "" {
		return errors.New("no record source: provide a session fixture with -replay")
	}
	reader, err := replay.Open(fixture, cfg.Data.DebugDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sink domain.ProgressSink
		live *tui.Live
	)
	if tui.IsTerminal() {
		live = tui.NewLive(cancel)
		sink = live
	} else {
		sink = tui.NewLogSink(logger)
	}

	opts := crawler.Options{
		Sold:   !boughtOnly || soldOnly,
		Bought: !soldOnly || boughtOnly,
		Full:   full,
	}
	cr := crawler.New(reader, st, sink, reader, logger, cfg.Crawl.Backoff)
	runErr := cr.Run(ctx, opts)

	if live != nil {
		live.Stop()
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info("collection cancelled")
			fmt.Println("cancelled")
			return nil
		}
		return runErr
	}

	return printSummary(st)
}

func runSearch(st *store.Store, logger *slog.Logger, query string) error {
	svc := search.NewService(st, logger)
	hits, err := svc.Find(query)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%-6s  %-12s  %s\n", h.Kind, h.ID, h.Name)
	}
	return nil
}

func printSummary(st *store.Store) error {
	sold, err := st.Count(domain.KindSold)
	if err != nil {
		return err
	}
	bought, err := st.Count(domain.KindBought)
	if err != nil {
		return err
	}
	modified, err := st.Metadata(domain.MetaLastModified, "never")
	if err != nil {
		return err
	}
	fmt.Printf("cached: %d sold, %d bought (last modified %s)\n", sold, bought, modified)
	return nil
}
