package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Boflo-hub/pima-poa-league/internal/cache"
	"github.com/Boflo-hub/pima-poa-league/internal/league"
)

// Source provides season data. It is implemented by the CSV loader and the
// Postgres store.
type Source interface {
	Seasons(ctx context.Context) ([]string, error)
	Season(ctx context.Context, name string) (*league.Season, error)
}

// Forecast is one simulation outcome as served to callers.
type Forecast struct {
	ID           uuid.UUID                `json:"id"`
	Season       string                   `json:"season,omitempty"`
	CurrentRound int                      `json:"current_round,omitempty"`
	GeneratedAt  time.Time                `json:"generated_at"`
	Cached       bool                     `json:"cached"`
	Result       *league.SimulationResult `json:"result"`
	Standings    []league.Outcome         `json:"standings"`
}

// Options override the service defaults for a season forecast. Zero values
// keep the defaults. Refresh skips the cache lookup.
type Options struct {
	Runs    int
	Seed    int64
	Workers int
	Refresh bool
}

// Request is an ad-hoc simulation over caller supplied data.
type Request struct {
	Competitors []league.Competitor `json:"competitors"`
	Fixtures    []league.Fixture    `json:"fixtures"`
	Runs        int                 `json:"runs"`
	Seed        int64               `json:"seed"`
	Workers     int                 `json:"workers"`
	TopK        int                 `json:"top_k"`
	BottomM     int                 `json:"bottom_m"`
}

// Service runs forecasts against a Source and caches the results.
type Service struct {
	source   Source
	cache    cache.Cache
	ttl      time.Duration
	defaults league.SimOptions
	maxRuns  int
	// maxWorkers caps the goroutines a single request may start.
	maxWorkers int
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewService wires a forecast service. A nil cache disables caching, and
// a zero maxRuns or maxWorkers leaves that limit off.
func NewService(src Source, c cache.Cache, ttl time.Duration, defaults league.SimOptions, maxRuns, maxWorkers int, logger logrus.FieldLogger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	logger = logger.WithField("component", "forecast")
	defaults.Logger = logger
	return &Service{
		source:     src,
		cache:      c,
		ttl:        ttl,
		defaults:   defaults,
		maxRuns:    maxRuns,
		maxWorkers: maxWorkers,
		logger:     logger,
		now:        time.Now,
	}
}

// Seasons lists the seasons of the source.
func (s *Service) Seasons(ctx context.Context) ([]string, error) {
	return s.source.Seasons(ctx)
}

func (s *Service) options(runs int, seed int64, workers int) (league.SimOptions, error) {
	opts := s.defaults
	if runs < 0 || workers < 0 {
		return opts, fmt.Errorf("%w: runs and workers must not be negative", league.ErrInvalidArgument)
	}
	if runs > 0 {
		opts.Runs = runs
	}
	if s.maxRuns > 0 && opts.Runs > s.maxRuns {
		return opts, fmt.Errorf("%w: runs %d exceeds the limit of %d", league.ErrInvalidArgument, opts.Runs, s.maxRuns)
	}
	if seed != 0 {
		opts.Seed = seed
	}
	if workers > 0 {
		opts.Workers = workers
	}
	if s.maxWorkers > 0 && opts.Workers > s.maxWorkers {
		return opts, fmt.Errorf("%w: workers %d exceeds the limit of %d", league.ErrInvalidArgument, opts.Workers, s.maxWorkers)
	}
	return opts, nil
}

// cacheKey covers everything that shapes a result. Seedless requests hash a
// zero seed and so share one entry per input set until it expires.
func cacheKey(scope string, competitors []league.Competitor, fixtures []league.Fixture, opts league.SimOptions) (string, error) {
	params := struct {
		Runs     int             `json:"runs"`
		Seed     int64           `json:"seed"`
		Workers  int             `json:"workers"`
		TopK     int             `json:"top_k"`
		BottomM  int             `json:"bottom_m"`
		Tunables league.Tunables `json:"tunables"`
	}{opts.Runs, opts.Seed, opts.Workers, opts.TopK, opts.BottomM, opts.Tunables}
	return cache.Key(scope, competitors, fixtures, params)
}

func (s *Service) lookup(ctx context.Context, key string) (*Forecast, bool) {
	var f Forecast
	err := s.cache.Get(ctx, key, &f)
	switch {
	case err == nil:
		f.Cached = true
		return &f, true
	case errors.Is(err, cache.ErrMiss):
	default:
		s.logger.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	return nil, false
}

func (s *Service) store(ctx context.Context, key string, f *Forecast) {
	if err := s.cache.Set(ctx, key, f, s.ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (s *Service) simulate(ctx context.Context, competitors []league.Competitor, fixtures []league.Fixture, opts league.SimOptions) (*Forecast, error) {
	start := s.now()
	res, err := league.Simulate(ctx, competitors, fixtures, opts)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"competitors": len(competitors),
		"fixtures":    len(fixtures),
		"runs":        res.Runs,
		"workers":     res.Workers,
		"seed":        res.Seed,
		"duration":    time.Since(start).String(),
	}).Info("simulation finished")

	return &Forecast{
		ID:          uuid.New(),
		GeneratedAt: s.now().UTC(),
		Result:      res,
		Standings:   league.Standings(res),
	}, nil
}

// Forecast simulates the rest of season.
func (s *Service) Forecast(ctx context.Context, season string, o Options) (*Forecast, error) {
	opts, err := s.options(o.Runs, o.Seed, o.Workers)
	if err != nil {
		return nil, err
	}
	data, err := s.source.Season(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading season %s: %w", season, err)
	}

	key, err := cacheKey(season, data.Competitors, data.Remaining, opts)
	if err != nil {
		return nil, err
	}
	if !o.Refresh {
		if f, ok := s.lookup(ctx, key); ok {
			return f, nil
		}
	}

	f, err := s.simulate(ctx, data.Competitors, data.Remaining, opts)
	if err != nil {
		return nil, err
	}
	f.Season = season
	f.CurrentRound = league.CurrentRound(data.Remaining, data.Results)
	s.store(ctx, key, f)
	return f, nil
}

// Refresh recomputes the default forecast of season and replaces the
// cached copy.
func (s *Service) Refresh(ctx context.Context, season string) (*Forecast, error) {
	return s.Forecast(ctx, season, Options{Refresh: true})
}

// Run simulates caller supplied competitors and fixtures. Only requests with
// an explicit seed are cached since others are not reproducible.
func (s *Service) Run(ctx context.Context, req Request) (*Forecast, error) {
	opts, err := s.options(req.Runs, req.Seed, req.Workers)
	if err != nil {
		return nil, err
	}
	if req.TopK < 0 || req.BottomM < 0 {
		return nil, fmt.Errorf("%w: top_k and bottom_m must not be negative", league.ErrInvalidArgument)
	}
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}
	if req.BottomM > 0 {
		opts.BottomM = req.BottomM
	}

	var key string
	if req.Seed != 0 {
		if key, err = cacheKey("adhoc", req.Competitors, req.Fixtures, opts); err != nil {
			return nil, err
		}
		if f, ok := s.lookup(ctx, key); ok {
			return f, nil
		}
	}

	f, err := s.simulate(ctx, req.Competitors, req.Fixtures, opts)
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.store(ctx, key, f)
	}
	return f, nil
}

// PlayerForm is the recent form of one competitor.
type PlayerForm struct {
	ID     string   `json:"id"`
	Form   []string `json:"form"`
	Streak string   `json:"streak"`
}

// Insights summarises where a season stands.
type Insights struct {
	Season       string              `json:"season"`
	CurrentRound int                 `json:"current_round"`
	Played       int                 `json:"played"`
	Remaining    int                 `json:"remaining"`
	Standings    []league.Competitor `json:"standings"`
	Players      []PlayerForm        `json:"players"`
	HeadToHead   *league.H2H         `json:"head_to_head,omitempty"`

	Progress   []league.RoundProgress `json:"progress"`
	PowerRound int                    `json:"power_round"`
	Power      []league.PowerEntry    `json:"power"`
	Upsets     []league.Upset         `json:"upsets"`
	// FormTable ranks everyone by wins over their last FormLength decided
	// results; Hot and Cold are its extremes.
	FormTable []league.FormEntry `json:"form_table"`
	Hot       *league.FormEntry  `json:"hot,omitempty"`
	Cold      *league.FormEntry  `json:"cold,omitempty"`
}

// InsightsQuery narrows an Insights call. Player limits the form report to
// one competitor and Opponent adds their head-to-head record. Round picks
// the round of the power rankings, the current round when zero.
type InsightsQuery struct {
	Player   string
	Opponent string
	Round    int
}

// FormLength is the number of recent results reported per player.
const FormLength = 5

// Insights reports the current round, form, streaks, power rankings and
// upsets of season.
func (s *Service) Insights(ctx context.Context, season string, q InsightsQuery) (*Insights, error) {
	if q.Round < 0 {
		return nil, fmt.Errorf("%w: round must not be negative", league.ErrInvalidArgument)
	}
	if q.Opponent != "" && q.Player == "" {
		return nil, fmt.Errorf("%w: opponent requires player", league.ErrInvalidArgument)
	}
	data, err := s.source.Season(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading season %s: %w", season, err)
	}

	known := make(map[string]bool, len(data.Competitors))
	for _, c := range data.Competitors {
		known[c.ID] = true
	}
	for _, id := range []string{q.Player, q.Opponent} {
		if id != "" && !known[id] {
			return nil, fmt.Errorf("%w: %q is not in season %s", league.ErrInvalidArgument, id, season)
		}
	}

	in := &Insights{
		Season:       season,
		CurrentRound: league.CurrentRound(data.Remaining, data.Results),
		Played:       len(data.Results),
		Remaining:    len(data.Remaining),
		Standings:    league.Rank(data.Competitors),
		Progress:     league.Progress(data.Remaining, data.Results),
		Upsets:       league.Upsets(data.Results, league.Positions(data.Competitors)),
		FormTable:    league.LastNForm(data.Results, FormLength),
	}
	for _, c := range in.Standings {
		if q.Player != "" && c.ID != q.Player {
			continue
		}
		in.Players = append(in.Players, PlayerForm{
			ID:     c.ID,
			Form:   league.Form(data.Results, c.ID, FormLength),
			Streak: league.Streak(data.Results, c.ID),
		})
	}
	if q.Opponent != "" {
		h := league.HeadToHead(data.Results, data.Remaining, q.Player, q.Opponent)
		in.HeadToHead = &h
	}

	in.PowerRound = q.Round
	if in.PowerRound == 0 {
		in.PowerRound = in.CurrentRound
	}
	in.Power = league.PowerRankings(data.Results, data.Remaining, data.Competitors, in.PowerRound)

	if hot, cold, ok := league.HotCold(in.FormTable); ok {
		in.Hot, in.Cold = &hot, &cold
	}
	return in, nil
}
