package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Boflo-hub/pima-poa-league/internal/cache"
	"github.com/Boflo-hub/pima-poa-league/internal/config"
	"github.com/Boflo-hub/pima-poa-league/internal/forecast"
	"github.com/Boflo-hub/pima-poa-league/internal/league"
	"github.com/Boflo-hub/pima-poa-league/internal/logger"
	"github.com/Boflo-hub/pima-poa-league/internal/source"
	"github.com/Boflo-hub/pima-poa-league/internal/store"
)

const usage = `usage: forecast [flags] [simulate|validate|import|serve]

  simulate  print the forecast of a season (default)
  validate  check the CSV sheets of a season, exit 1 on errors
  import    copy a season from the CSV sheets into Postgres
  serve     run the HTTP API

flags:
`

func main() {
	fs := pflag.NewFlagSet("forecast", pflag.ContinueOnError)
	config.Flags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := fs.Arg(0)
	if cmd == "" {
		cmd = "simulate"
	}
	var code int
	switch cmd {
	case "simulate":
		code = runSimulate(ctx, cfg, log, os.Stdout)
	case "validate":
		code = runValidate(ctx, cfg, log, os.Stdout)
	case "import":
		code = runImport(ctx, cfg, log)
	case "serve":
		code = runServe(ctx, cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		code = 2
	}
	stop()
	os.Exit(code)
}

func csvLoader(cfg *config.Config, log logrus.FieldLogger) *source.Loader {
	fetcher := source.NewFetcher(cfg.FetchTimeout, logger.WithComponent(log, "fetcher"))
	return source.NewLoader(cfg.FixturesPath, cfg.LeaguePath, fetcher, log)
}

// openSource returns the configured season source and a function releasing it.
func openSource(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (forecast.Source, func(), error) {
	if cfg.DataSource == config.SourcePostgres {
		st, err := store.NewStore(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	}
	return csvLoader(cfg, log), func() {}, nil
}

// openCache connects to Redis when configured. Failing to reach it only
// disables caching.
func openCache(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		return cache.Noop{}, func() {}
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL, log)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, forecasts will not be cached")
		return cache.Noop{}, func() {}
	}
	return r, func() { r.Close() }
}

func simOptions(cfg *config.Config) league.SimOptions {
	return league.SimOptions{
		Runs:    cfg.SimRuns,
		Seed:    cfg.SimSeed,
		Workers: cfg.SimWorkers,
		TopK:    cfg.SimTopK,
		BottomM: cfg.SimBottomM,
		Tunables: league.Tunables{
			CurrentWeight: cfg.SimCurrentWeight,
			BaseWeight:    cfg.SimBaseWeight,
			MinProb:       cfg.SimMinProb,
			MaxProb:       cfg.SimMaxProb,
		},
	}
}

// pickSeason returns the configured season, or the latest one known to src.
func pickSeason(ctx context.Context, cfg *config.Config, src forecast.Source) (string, error) {
	if cfg.Season != "" {
		return cfg.Season, nil
	}
	seasons, err := src.Seasons(ctx)
	if err != nil {
		return "", err
	}
	if len(seasons) == 0 {
		return "", fmt.Errorf("%w: no seasons in the data", league.ErrUnknownSeason)
	}
	return seasons[len(seasons)-1], nil
}

func currentTable(competitors []league.Competitor) []league.TableEntry {
	ranked := league.Rank(competitors)
	table := make([]league.TableEntry, len(ranked))
	for i, c := range ranked {
		table[i] = league.TableEntry{ID: c.ID, Played: c.Played, Wins: c.Wins, Losses: c.Played - c.Wins, Points: c.Points}
	}
	return table
}

func runSimulate(ctx context.Context, cfg *config.Config, log *logrus.Logger, out io.Writer) int {
	src, closeSrc, err := openSource(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to open season source")
		return 1
	}
	defer closeSrc()

	season, err := pickSeason(ctx, cfg, src)
	if err != nil {
		log.WithError(err).Error("No season to forecast")
		return 1
	}
	data, err := src.Season(ctx, season)
	if err != nil {
		log.WithError(err).WithField("season", season).Error("Failed to load season")
		return 1
	}

	svc := forecast.NewService(src, cache.Noop{}, 0, simOptions(cfg), cfg.SimMaxRuns, cfg.SimMaxWorkers, log)
	f, err := svc.Forecast(ctx, season, forecast.Options{})
	if err != nil {
		log.WithError(err).WithField("season", season).Error("Forecast failed")
		return 1
	}

	league.PrintTable(out, fmt.Sprintf("Season %s standings (round %d)", season, f.CurrentRound), currentTable(data.Competitors))
	fmt.Fprintln(out)
	league.PrintForecast(out, fmt.Sprintf("Season %s forecast (%d fixtures left)", season, len(data.Remaining)), f.Result)
	return 0
}

func runValidate(ctx context.Context, cfg *config.Config, log *logrus.Logger, out io.Writer) int {
	d, err := csvLoader(cfg, log).Load(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load sheets")
		return 1
	}
	seasons := d.Seasons()
	if cfg.Season != "" {
		seasons = []string{cfg.Season}
	}

	errorsFound := 0
	for _, season := range seasons {
		r := d.Validate(season)
		fmt.Fprintf(out, "Season %s: %d fixtures, %d league rows, %d issues\n", r.Season, r.Fixtures, r.League, len(r.Issues))
		for _, i := range r.Issues {
			loc := i.File
			if i.Line > 0 {
				loc = fmt.Sprintf("%s:%d", i.File, i.Line)
			}
			fmt.Fprintf(out, "  %-7s %-18s %-16s %s\n", i.Severity, i.Kind, loc, i.Detail)
		}
		errorsFound += r.Errors()
	}
	if errorsFound > 0 {
		fmt.Fprintf(out, "%d error(s) found\n", errorsFound)
		return 1
	}
	return 0
}

func runImport(ctx context.Context, cfg *config.Config, log *logrus.Logger) int {
	d, err := csvLoader(cfg, log).Load(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load sheets")
		return 1
	}
	st, err := store.NewStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		return 1
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.WithError(err).Error("Migration failed")
		return 1
	}

	seasons := d.Seasons()
	if cfg.Season != "" {
		seasons = []string{cfg.Season}
	}
	for _, name := range seasons {
		s, err := d.Season(name)
		if err != nil {
			log.WithError(err).WithField("season", name).Error("Failed to build season")
			return 1
		}
		if err := st.ImportSeason(ctx, s); err != nil {
			log.WithError(err).WithField("season", name).Error("Import failed")
			return 1
		}
	}
	return 0
}
