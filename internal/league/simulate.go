package league

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/Boflo-hub/pima-poa-league/internal/logger"
)

const (
	// PointsPerWin is awarded to the winner of every simulated fixture.
	PointsPerWin = 3

	// how often a worker looks at its context
	cancelCheckEvery = 256
)

// Tunables are the constants of the match model.
type Tunables struct {
	CurrentWeight float64 `json:"current_weight"`
	BaseWeight    float64 `json:"base_weight"`
	MinProb       float64 `json:"min_prob"`
	MaxProb       float64 `json:"max_prob"`
}

// DefaultTunables returns the stock blend weights and probability bounds.
func DefaultTunables() Tunables {
	return Tunables{
		CurrentWeight: 0.6,
		BaseWeight:    0.4,
		MinProb:       0.15,
		MaxProb:       0.85,
	}
}

func (t Tunables) validate() error {
	for _, v := range []float64{t.CurrentWeight, t.BaseWeight, t.MinProb, t.MaxProb} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: tunables must be finite numbers, got %+v", ErrInvalidArgument, t)
		}
	}
	switch {
	case t.CurrentWeight < 0 || t.BaseWeight < 0:
		return fmt.Errorf("%w: blend weights must not be negative", ErrInvalidArgument)
	case t.CurrentWeight+t.BaseWeight == 0:
		return fmt.Errorf("%w: blend weights must not both be zero", ErrInvalidArgument)
	case t.MinProb < 0 || t.MaxProb > 1 || t.MinProb > t.MaxProb:
		return fmt.Errorf("%w: probability bounds [%g, %g] are not a sub-range of [0, 1]",
			ErrInvalidArgument, t.MinProb, t.MaxProb)
	}
	return nil
}

// WinProbability returns the chance that A beats B given the current and
// base strengths of both sides, clamped to [MinProb, MaxProb].
func (t Tunables) WinProbability(nowA, baseA, nowB, baseB float64) float64 {
	a := t.CurrentWeight*nowA + t.BaseWeight*baseA
	b := t.CurrentWeight*nowB + t.BaseWeight*baseB
	p := a / (a + b)
	return math.Max(t.MinProb, math.Min(t.MaxProb, p))
}

// Strength is the add-one smoothed win rate of a competitor.
func Strength(wins, played int) float64 {
	return float64(wins+1) / float64(played+2)
}

// SimOptions configures Simulate. Zero fields take their defaults, except
// Runs which must be set.
type SimOptions struct {
	Runs int
	// Seed drives the random source. Zero picks a time based seed which is
	// reported back in the result.
	Seed     int64
	Workers  int
	TopK     int
	BottomM  int
	Tunables Tunables
	Logger   logrus.FieldLogger
}

// DefaultSimOptions returns options for a 5000 run single worker forecast.
func DefaultSimOptions() SimOptions {
	return SimOptions{
		Runs:     5000,
		Workers:  1,
		TopK:     5,
		BottomM:  2,
		Tunables: DefaultTunables(),
	}
}

func (o SimOptions) withDefaults() SimOptions {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.TopK == 0 {
		o.TopK = 5
	}
	if o.BottomM == 0 {
		o.BottomM = 2
	}
	if o.Tunables == (Tunables{}) {
		o.Tunables = DefaultTunables()
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// record is the mutable per-run copy of a competitor's form.
type record struct {
	points, wins, played int
}

func (r record) strength() float64 { return Strength(r.wins, r.played) }

type simulation struct {
	competitors []Competitor
	pairs       [][2]int
	base        []float64
	topK        int
	bottomM     int
	tunables    Tunables
}

// Simulate plays the remaining fixtures out opts.Runs times and tallies how
// every competitor finishes. Fixtures naming unknown competitors are skipped.
// Runs are split across opts.Workers goroutines, each with its own random
// stream derived from the seed, so a fixed (Seed, Workers) pair reproduces
// the same result.
func Simulate(ctx context.Context, competitors []Competitor, fixtures []Fixture, opts SimOptions) (*SimulationResult, error) {
	opts = opts.withDefaults()
	if opts.Runs < 1 {
		return nil, fmt.Errorf("%w: runs must be at least 1, got %d", ErrInvalidArgument, opts.Runs)
	}
	if opts.TopK < 0 || opts.BottomM < 0 {
		return nil, fmt.Errorf("%w: top and bottom bands must not be negative", ErrInvalidArgument)
	}
	if err := opts.Tunables.validate(); err != nil {
		return nil, err
	}
	index, err := indexCompetitors(competitors)
	if err != nil {
		return nil, err
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	res := &SimulationResult{
		Runs:     opts.Runs,
		Seed:     opts.Seed,
		TopK:     opts.TopK,
		BottomM:  opts.BottomM,
		Outcomes: []Outcome{},
	}
	if len(competitors) == 0 {
		return res, nil
	}

	sim := &simulation{
		competitors: competitors,
		pairs:       make([][2]int, 0, len(fixtures)),
		base:        make([]float64, len(competitors)),
		topK:        opts.TopK,
		bottomM:     opts.BottomM,
		tunables:    opts.Tunables,
	}
	for i, c := range competitors {
		sim.base[i] = Strength(c.Wins, c.Played)
	}
	var unresolved []string
	for _, f := range fixtures {
		a, okA := index[f.A]
		b, okB := index[f.B]
		if !okA || !okB || a == b {
			unresolved = append(unresolved, f.A+" vs "+f.B)
			continue
		}
		sim.pairs = append(sim.pairs, [2]int{a, b})
	}
	res.Resolved = len(sim.pairs)
	res.Skipped = len(unresolved)
	if len(unresolved) > 0 {
		opts.Logger.WithFields(logrus.Fields{
			"skipped":  len(unresolved),
			"fixtures": unresolved,
		}).Warn("skipping fixtures with unresolved competitors")
	}

	workers := opts.Workers
	if workers > opts.Runs {
		workers = opts.Runs
	}
	res.Workers = workers

	start := time.Now()
	tallies := make([]*tally, workers)
	errs := make([]error, workers)
	per, extra := opts.Runs/workers, opts.Runs%workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		runs := per
		if w < extra {
			runs++
		}
		wg.Add(1)
		go func(w, runs int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(opts.Seed + int64(w)))
			tallies[w], errs[w] = sim.run(ctx, rng, runs)
		}(w, runs)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	total := tallies[0]
	for _, t := range tallies[1:] {
		total.merge(t)
	}
	res.Outcomes = total.outcomes(competitors, opts.Runs)

	opts.Logger.WithFields(logrus.Fields{
		"runs":        opts.Runs,
		"workers":     workers,
		"competitors": len(competitors),
		"fixtures":    res.Resolved,
		"skipped":     res.Skipped,
		"elapsed":     time.Since(start),
	}).Debug("simulation finished")
	return res, nil
}

func indexCompetitors(competitors []Competitor) (map[string]int, error) {
	index := make(map[string]int, len(competitors))
	for i, c := range competitors {
		switch {
		case strings.TrimSpace(c.ID) == "":
			return nil, fmt.Errorf("%w: competitor %d has an empty id", ErrInvalidArgument, i)
		case c.Wins < 0 || c.Played < 0:
			return nil, fmt.Errorf("%w: competitor %q has negative wins or games", ErrInvalidArgument, c.ID)
		case c.Wins > c.Played:
			return nil, fmt.Errorf("%w: competitor %q has %d wins from %d games",
				ErrInvalidArgument, c.ID, c.Wins, c.Played)
		}
		if _, dup := index[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate competitor %q", ErrInvalidArgument, c.ID)
		}
		index[c.ID] = i
	}
	return index, nil
}

func (s *simulation) run(ctx context.Context, rng *rand.Rand, runs int) (*tally, error) {
	n := len(s.competitors)
	t := newTally(n)
	state := make([]record, n)
	order := make([]int, n)

	for r := 0; r < runs; r++ {
		if r%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for i, c := range s.competitors {
			state[i] = record{points: c.Points, wins: c.Wins, played: c.Played}
			order[i] = i
		}
		s.playOut(rng, state)
		s.rank(state, order)
		t.add(state, order, s.topK, s.bottomM)
	}
	return t, nil
}

// playOut resolves the fixtures in listed order, so later fixtures see the
// strengths left behind by earlier ones.
func (s *simulation) playOut(rng *rand.Rand, state []record) {
	for _, p := range s.pairs {
		a, b := &state[p[0]], &state[p[1]]
		pA := s.tunables.WinProbability(a.strength(), s.base[p[0]], b.strength(), s.base[p[1]])

		winner := b
		if rng.Float64() < pA {
			winner = a
		}
		winner.wins++
		winner.points += PointsPerWin
		a.played++
		b.played++
	}
}

func (s *simulation) rank(state []record, order []int) {
	sort.Slice(order, func(i, j int) bool {
		x, y := order[i], order[j]
		return ranksBefore(state[x].points, s.competitors[x].ID, state[y].points, s.competitors[y].ID)
	})
}

// ranksBefore orders by points descending, then id ascending.
func ranksBefore(pointsA int, idA string, pointsB int, idB string) bool {
	if pointsA != pointsB {
		return pointsA > pointsB
	}
	return idA < idB
}

// Rank returns the competitors in table order.
func Rank(competitors []Competitor) []Competitor {
	out := make([]Competitor, len(competitors))
	copy(out, competitors)
	sort.SliceStable(out, func(i, j int) bool {
		return ranksBefore(out[i].Points, out[i].ID, out[j].Points, out[j].ID)
	})
	return out
}

// Standings returns the most likely final table: outcomes by expected rank,
// then expected points descending, then id.
func Standings(r *SimulationResult) []Outcome {
	out := make([]Outcome, len(r.Outcomes))
	copy(out, r.Outcomes)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ExpectedRank != b.ExpectedRank {
			return a.ExpectedRank < b.ExpectedRank
		}
		if a.ExpectedPoints != b.ExpectedPoints {
			return a.ExpectedPoints > b.ExpectedPoints
		}
		return a.ID < b.ID
	})
	return out
}

type tally struct {
	titles, top, bottom []int
	pointsSum, rankSum  []int64
	positions           [][]int
	points              []map[int]int
}

func newTally(n int) *tally {
	t := &tally{
		titles:    make([]int, n),
		top:       make([]int, n),
		bottom:    make([]int, n),
		pointsSum: make([]int64, n),
		rankSum:   make([]int64, n),
		positions: make([][]int, n),
		points:    make([]map[int]int, n),
	}
	for i := 0; i < n; i++ {
		t.positions[i] = make([]int, n)
		t.points[i] = make(map[int]int)
	}
	return t
}

func (t *tally) add(state []record, order []int, topK, bottomM int) {
	n := len(order)
	for pos, i := range order {
		rank := pos + 1
		if rank == 1 {
			t.titles[i]++
		}
		if rank <= topK {
			t.top[i]++
		}
		if rank > n-bottomM {
			t.bottom[i]++
		}
		t.pointsSum[i] += int64(state[i].points)
		t.rankSum[i] += int64(rank)
		t.positions[i][pos]++
		t.points[i][state[i].points]++
	}
}

func (t *tally) merge(o *tally) {
	for i := range t.titles {
		t.titles[i] += o.titles[i]
		t.top[i] += o.top[i]
		t.bottom[i] += o.bottom[i]
		t.pointsSum[i] += o.pointsSum[i]
		t.rankSum[i] += o.rankSum[i]
		for pos, c := range o.positions[i] {
			t.positions[i][pos] += c
		}
		for pts, c := range o.points[i] {
			t.points[i][pts] += c
		}
	}
}

func (t *tally) outcomes(competitors []Competitor, runs int) []Outcome {
	r := float64(runs)
	out := make([]Outcome, len(competitors))
	for i, c := range competitors {
		o := Outcome{
			ID:        c.ID,
			Titles:    t.titles[i],
			Top:       t.top[i],
			Bottom:    t.bottom[i],
			PointsSum: t.pointsSum[i],
			RankSum:   t.rankSum[i],
			Positions: t.positions[i],
		}
		o.TitlePct = 100 * float64(o.Titles) / r
		o.TopPct = 100 * float64(o.Top) / r
		o.BottomPct = 100 * float64(o.Bottom) / r
		o.ExpectedPoints = float64(o.PointsSum) / r
		o.ExpectedRank = float64(o.RankSum) / r

		ranks := make([]float64, len(o.Positions))
		rankWeights := make([]float64, len(o.Positions))
		for pos, count := range o.Positions {
			ranks[pos] = float64(pos + 1)
			rankWeights[pos] = float64(count)
		}
		o.RankStdDev = weightedStdDev(ranks, rankWeights, runs)

		keys := make([]int, 0, len(t.points[i]))
		for pts := range t.points[i] {
			keys = append(keys, pts)
		}
		sort.Ints(keys)
		pts := make([]float64, len(keys))
		ptsWeights := make([]float64, len(keys))
		for k, p := range keys {
			pts[k] = float64(p)
			ptsWeights[k] = float64(t.points[i][p])
		}
		o.PointsStdDev = weightedStdDev(pts, ptsWeights, runs)

		out[i] = o
	}
	return out
}

func weightedStdDev(x, weights []float64, runs int) float64 {
	if runs < 2 {
		return 0
	}
	_, sd := stat.MeanStdDev(x, weights)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}
