package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finn-deal-finder/api"
	"finn-deal-finder/config"
	"finn-deal-finder/models"
	"finn-deal-finder/scraper/finn"
	"finn-deal-finder/services"
	"finn-deal-finder/storage"
	"finn-deal-finder/utils"
)

const historyConnectTimeout = 2 * time.Second

type options struct {
	filter  models.FilterConfig
	csv     bool
	json    bool
	history string
	trends  bool
	days    int
	serve   bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	var priceMin, priceMax int
	fs := flag.NewFlagSet("finn-deal-finder", flag.ContinueOnError)

	fs.StringVar(&opts.filter.Keywords, "q", "", "search keywords")
	category := fs.String("category", string(models.CategoryTorget), "torget | car | realestate | mc | boat")
	fs.IntVar(&priceMin, "min", 0, "minimum price in NOK")
	fs.IntVar(&priceMax, "max", 0, "maximum price in NOK")
	condition := fs.String("condition", "", "new | as_new | used | for_parts (torget only)")
	location := fs.String("location", "", "county, e.g. oslo or vestland")
	published := fs.String("published", "", "today | week | month")
	fs.BoolVar(&opts.filter.PrivateSellerOnly, "private", false, "private sellers only")
	fs.BoolVar(&opts.filter.HasImageOnly, "image", false, "listings with an image only")
	fs.BoolVar(&opts.filter.ShippingAvailable, "shipping", false, "listings with shipping only")
	sortOrder := fs.String("sort", string(models.SortRelevance), "relevance | price_asc | price_desc | date")
	fs.IntVar(&opts.filter.MaxPages, "pages", 0, "result pages to fetch (default 3)")

	fs.BoolVar(&opts.csv, "csv", false, "also write results to CSV_OUTPUT_PATH")
	fs.BoolVar(&opts.json, "json", false, "also write results to JSON_OUTPUT_PATH")
	fs.StringVar(&opts.history, "history", "", "print the recorded price history of a FINN code and exit")
	fs.BoolVar(&opts.trends, "trends", false, "print daily price statistics for -category and exit")
	fs.IntVar(&opts.days, "days", 30, "days covered by -trends")
	fs.BoolVar(&opts.serve, "serve", false, "run the HTTP API instead of a single search")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.filter.Category = models.Category(*category)
	opts.filter.Condition = models.Condition(*condition)
	opts.filter.Location = models.County(*location)
	opts.filter.PublishedWithin = models.PublishedWithin(*published)
	opts.filter.SortOrder = models.SortOrder(*sortOrder)
	// Bounds are passed through as given so the query builder can reject
	// negative values.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min":
			opts.filter.PriceMin = &priceMin
		case "max":
			opts.filter.PriceMax = &priceMax
		}
	})
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg := config.Load()
	logger := utils.NewLoggerWith(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== FINN Deal Finder starting ===")
	logger.Info("Config: base %s | delay %v | timeout %v | page cap %d | mode %s",
		cfg.BaseURL, cfg.RequestDelay, cfg.RequestTimeout, cfg.MaxPagesCap, cfg.FetchMode)

	var code int
	switch {
	case opts.history != "":
		code = runHistory(ctx, cfg, logger, opts.history)
	case opts.trends:
		code = runTrends(ctx, cfg, logger, opts.filter.Category, opts.days)
	case opts.serve:
		code = runServer(ctx, cfg, logger)
	default:
		code = runSearch(ctx, cfg, logger, opts)
	}

	if code != 0 {
		stop()
		logger.Sync()
		os.Exit(code)
	}
}

// newSearchService wires the pipeline for cfg. The returned cleanup shuts
// down the browser when one was started.
func newSearchService(cfg *config.Config, logger *utils.Logger) (*services.SearchService, func(), error) {
	var (
		source  finn.PageSource
		cleanup = func() {}
	)

	switch cfg.FetchMode {
	case config.FetchModeBrowser:
		browser, err := finn.NewBrowserSource(cfg.ChromeBin, cfg.UserAgent, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		source = browser
		cleanup = browser.Close
	default:
		source = finn.NewHTTPSource(cfg.RequestTimeout, cfg.UserAgent)
	}

	svc := services.NewSearchService(
		finn.NewQueryBuilder(cfg.BaseURL, cfg.MaxPagesCap),
		source,
		finn.FetchPolicy{Delay: cfg.RequestDelay, Timeout: cfg.RequestTimeout},
		finn.NewExtractor(cfg.BaseURL, time.Now),
		logger,
	)
	return svc, cleanup, nil
}

func runSearch(ctx context.Context, cfg *config.Config, logger *utils.Logger, opts options) int {
	svc, cleanup, err := newSearchService(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up search: %v", err)
		return 1
	}
	defer cleanup()

	result, err := svc.Run(ctx, opts.filter)
	if err != nil {
		if vErr, ok := services.IsValidationError(err); ok {
			logger.Error("Invalid search: %s", vErr.Error())
			return 2
		}
		logger.Error("Search failed: %v", err)
		return 1
	}

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	logger.Info("Search finished: %d listings from %d pages (%s)",
		len(result.Listings), result.PagesFetched, result.SearchURL)

	insights := services.NewInsightService(logger)
	insights.Print(os.Stdout, insights.Generate(result))

	for _, w := range openWriters(ctx, cfg, logger, opts.csv, opts.json) {
		if err := w.Write(ctx, result, opts.filter.Category); err != nil {
			logger.Error("Write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			logger.Warn("Close failed: %v", err)
		}
	}
	return 0
}

// openWriters returns the configured result sinks. PostgreSQL is optional:
// when it cannot be reached the search output is still printed.
func openWriters(ctx context.Context, cfg *config.Config, logger *utils.Logger, withCSV, withJSON bool) []storage.ResultWriter {
	var writers []storage.ResultWriter

	if withCSV {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
		} else {
			logger.Info("Writing results to %s", cfg.CSVOutputPath)
			writers = append(writers, csvWriter)
		}
	}

	if withJSON {
		jsonWriter, err := storage.NewJSONWriter(cfg.JSONOutputPath)
		if err != nil {
			logger.Error("Failed to create JSON writer: %v", err)
		} else {
			logger.Info("Writing results to %s", cfg.JSONOutputPath)
			writers = append(writers, jsonWriter)
		}
	}

	pgWriter, err := openHistorySink(ctx, cfg, logger)
	if err != nil {
		logger.Warn("Price history disabled: %v", err)
	} else {
		writers = append(writers, pgWriter)
	}
	return writers
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.PostgresWriter, error) {
	retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}
	return storage.NewPostgresWriter(ctx, cfg.DSN(), retry, logger)
}

// openHistorySink makes a single short connection attempt for the optional
// price history of a search.
func openHistorySink(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.PostgresWriter, error) {
	connectCtx, cancel := context.WithTimeout(ctx, historyConnectTimeout)
	defer cancel()
	return storage.NewPostgresWriter(connectCtx, cfg.DSN(), &utils.RetryConfig{MaxAttempts: 1}, logger)
}

func runHistory(ctx context.Context, cfg *config.Config, logger *utils.Logger, finnID string) int {
	pgWriter, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		return 1
	}
	defer pgWriter.Close()

	points, err := pgWriter.History(ctx, finnID)
	if err != nil {
		logger.Error("History lookup failed: %v", err)
		return 1
	}
	if len(points) == 0 {
		fmt.Printf("No price history recorded for %s\n", finnID)
		return 0
	}

	fmt.Printf("\nPrice history for %s (%s)\n", finnID, points[0].Title)
	for _, p := range points {
		price := "unknown"
		if p.Price != nil {
			price = fmt.Sprintf("%d kr", *p.Price)
		}
		fmt.Printf("  %s  %-12s score %3d\n", p.RecordedAt.Local().Format("2006-01-02 15:04"), price, p.DealScore)
	}

	trend := services.AnalyzeTrend(points)
	if trend.Direction == models.TrendInsufficientData {
		fmt.Println("\n  Trend: not enough priced observations")
	} else {
		fmt.Printf("\n  Trend: %s (%+.1f%%) | low %d kr | high %d kr | now %d kr\n",
			trend.Direction, trend.ChangePercent, trend.Min, trend.Max, trend.Current)
	}
	fmt.Println()
	return 0
}

func runTrends(ctx context.Context, cfg *config.Config, logger *utils.Logger, category models.Category, days int) int {
	pgWriter, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		return 1
	}
	defer pgWriter.Close()

	daily, err := pgWriter.CategoryTrends(ctx, category, days)
	if err != nil {
		logger.Error("Trend lookup failed: %v", err)
		return 1
	}
	if len(daily) == 0 {
		fmt.Printf("No prices recorded for %s in the last %d days\n", category, days)
		return 0
	}

	fmt.Printf("\nDaily prices for %s, last %d days\n", category, days)
	for _, d := range daily {
		fmt.Printf("  %s  avg %10.0f kr  min %8d kr  max %8d kr  (%d)\n",
			d.Day.Format("2006-01-02"), d.Average, d.Min, d.Max, d.Count)
	}
	fmt.Println()
	return 0
}

func runServer(ctx context.Context, cfg *config.Config, logger *utils.Logger) int {
	svc, cleanup, err := newSearchService(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up search: %v", err)
		return 1
	}
	defer cleanup()

	var (
		searches  storage.SearchStore
		favorites storage.FavoriteStore
	)
	store := storage.NewRedisStore(storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), logger)
	if err := store.Ping(ctx); err != nil {
		logger.Warn("Saved searches and favorites disabled: %v", err)
		_ = store.Close()
	} else {
		defer store.Close()
		searches, favorites = store, store
	}

	server := api.NewServer(cfg.HTTPAddr, api.NewRouter(api.NewHandler(svc, searches, favorites, logger), logger))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed: %v", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed: %v", err)
			return 1
		}
	}
	return 0
}
