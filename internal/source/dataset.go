package source

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Boflo-hub/pima-poa-league/internal/league"
)

// Dataset holds the parsed sheets of every season.
type Dataset struct {
	Fixtures []FixtureRow
	League   []LeagueRow
}

// Seasons lists the seasons found in either sheet, oldest first.
func (d *Dataset) Seasons() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, f := range d.Fixtures {
		add(f.Season)
	}
	for _, l := range d.League {
		add(l.Season)
	}
	sort.Slice(out, func(i, j int) bool { return seasonLess(out[i], out[j]) })
	return out
}

func seasonLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func (d *Dataset) fixtures(season string) []FixtureRow {
	var out []FixtureRow
	for _, f := range d.Fixtures {
		if f.Season == season {
			out = append(out, f)
		}
	}
	return out
}

func (d *Dataset) league(season string) []LeagueRow {
	var out []LeagueRow
	for _, l := range d.League {
		if l.Season == season {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out
}

// Season assembles the simulator input for one season. Standings come from
// league.csv when it covers the season and are otherwise derived from the
// played fixtures.
func (d *Dataset) Season(name string) (*league.Season, error) {
	fixtures := d.fixtures(name)
	table := d.league(name)
	if len(fixtures) == 0 && len(table) == 0 {
		return nil, fmt.Errorf("%w: %s", league.ErrUnknownSeason, name)
	}

	s := &league.Season{Name: name}
	for _, f := range fixtures {
		if f.Played {
			s.Results = append(s.Results, league.Result{Round: f.Round, A: f.A, B: f.B, Winner: f.Winner})
		} else {
			s.Remaining = append(s.Remaining, league.Fixture{Round: f.Round, A: f.A, B: f.B})
		}
	}
	sort.SliceStable(s.Remaining, func(i, j int) bool { return s.Remaining[i].Round < s.Remaining[j].Round })

	known := make(map[string]bool)
	if len(table) > 0 {
		for _, row := range table {
			if known[row.Player] {
				continue
			}
			played := row.P
			if row.W > played {
				played = row.W
			}
			s.Competitors = append(s.Competitors, league.Competitor{
				ID:       row.Player,
				Points:   row.PTS,
				Wins:     row.W,
				Played:   played,
				BallDiff: row.BD,
			})
			known[row.Player] = true
		}
	} else {
		s.Competitors = league.Competitors(league.CalculateTable(s.Results))
		for _, c := range s.Competitors {
			known[c.ID] = true
		}
	}

	// players that only appear in the schedule start from nothing
	for _, f := range fixtures {
		for _, id := range []string{f.A, f.B} {
			if id != "" && !known[id] {
				known[id] = true
				s.Competitors = append(s.Competitors, league.Competitor{ID: id})
			}
		}
	}
	return s, nil
}
