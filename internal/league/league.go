package league

import "errors"

var (
	// ErrInvalidArgument is returned for inputs that cannot be simulated.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownSeason is returned by sources that hold no data for a season.
	ErrUnknownSeason = errors.New("unknown season")
)

// Competitor represents one participant with its season-to-date form.
type Competitor struct {
	ID     string `json:"id"`
	Points int    `json:"points"`
	Wins   int    `json:"wins"`
	Played int    `json:"played"`
	// BallDiff is the season ball difference from the league table. Only
	// the power rankings read it.
	BallDiff int `json:"ball_diff,omitempty"`
}

// Fixture is a scheduled match that has not been played yet.
type Fixture struct {
	Round int    `json:"round,omitempty"`
	A     string `json:"a"`
	B     string `json:"b"`
}

// Result is a played match. Winner is empty when the sheet did not record one.
type Result struct {
	Round  int    `json:"round"`
	A      string `json:"a"`
	B      string `json:"b"`
	Winner string `json:"winner"`
}

// Season bundles everything known about one season of the league.
type Season struct {
	Name        string       `json:"name"`
	Competitors []Competitor `json:"competitors"`
	Remaining   []Fixture    `json:"remaining"`
	Results     []Result     `json:"results"`
}

// TableEntry holds the standings info for one competitor.
type TableEntry struct {
	ID                           string
	Played, Wins, Losses, Points int
}

// Outcome is the aggregated forecast for one competitor.
type Outcome struct {
	ID        string `json:"id"`
	Titles    int    `json:"titles"`
	Top       int    `json:"top"`
	Bottom    int    `json:"bottom"`
	PointsSum int64  `json:"points_sum"`
	RankSum   int64  `json:"rank_sum"`
	// Positions[i] counts the runs finishing at rank i+1.
	Positions []int `json:"positions"`

	TitlePct       float64 `json:"title_pct"`
	TopPct         float64 `json:"top_pct"`
	BottomPct      float64 `json:"bottom_pct"`
	ExpectedPoints float64 `json:"expected_points"`
	ExpectedRank   float64 `json:"expected_rank"`
	PointsStdDev   float64 `json:"points_std_dev"`
	RankStdDev     float64 `json:"rank_std_dev"`
}

// SimulationResult is the aggregate output of Simulate. Outcomes keep the
// order of the competitors passed in.
type SimulationResult struct {
	Runs     int       `json:"runs"`
	Seed     int64     `json:"seed"`
	Workers  int       `json:"workers"`
	TopK     int       `json:"top_k"`
	BottomM  int       `json:"bottom_m"`
	Resolved int       `json:"resolved"`
	Skipped  int       `json:"skipped"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome returns the outcome recorded for id.
func (r *SimulationResult) Outcome(id string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return Outcome{}, false
}
