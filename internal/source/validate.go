package source

import (
	"fmt"
	"strings"
)

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in the sheets.
type Issue struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Detail   string   `json:"detail"`
	File     string   `json:"file"`
	Line     int      `json:"line,omitempty"`
}

// Report collects the issues of one season.
type Report struct {
	Season   string  `json:"season"`
	Fixtures int     `json:"fixtures"`
	League   int     `json:"league"`
	Issues   []Issue `json:"issues"`
}

// Errors counts the issues that make the season data unusable.
func (r *Report) Errors() int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *Report) add(sev Severity, kind, file string, line int, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		Kind:     kind,
		Detail:   fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
	})
}

const (
	fixturesFile = "fixtures.csv"
	leagueFile   = "league.csv"
)

// Validate checks one season of the sheets for inconsistencies.
func (d *Dataset) Validate(season string) *Report {
	fixtures := d.fixtures(season)
	table := d.league(season)
	r := &Report{Season: season, Fixtures: len(fixtures), League: len(table)}

	inLeague := make(map[string]bool, len(table))
	for _, row := range table {
		inLeague[row.Player] = true
	}

	type pairKey struct {
		round int
		a, b  string
	}
	pairs := make(map[pairKey]bool)
	playedBy := make(map[string]int)
	winsBy := make(map[string]int)

	for _, f := range fixtures {
		raw := strings.ToUpper(f.PlayedRaw)
		if raw != "YES" && raw != "NO" {
			r.add(SeverityError, "Bad Played?", fixturesFile, f.Line, "Played? must be YES/NO, got %q", f.PlayedRaw)
		}
		if f.Played && f.Winner == "" {
			r.add(SeverityError, "Winner missing", fixturesFile, f.Line,
				"Played=YES but Winner blank (%s vs %s, R%d)", f.A, f.B, f.Round)
		}
		if !f.Played && f.Winner != "" {
			r.add(SeverityWarning, "Winner present", fixturesFile, f.Line,
				"Played=NO but Winner filled (%s vs %s, R%d)", f.A, f.B, f.Round)
		}
		if f.Winner != "" && f.Winner != f.A && f.Winner != f.B {
			r.add(SeverityError, "Winner invalid", fixturesFile, f.Line,
				"Winner %q not in match players (%s vs %s, R%d)", f.Winner, f.A, f.B, f.Round)
		}
		if f.A == f.B {
			r.add(SeverityError, "Self match", fixturesFile, f.Line, "Player A equals Player B (%s) in R%d", f.A, f.Round)
		}

		key := pairKey{round: f.Round, a: f.A, b: f.B}
		if key.b < key.a {
			key.a, key.b = key.b, key.a
		}
		if pairs[key] {
			r.add(SeverityWarning, "Duplicate fixture", fixturesFile, f.Line,
				"Duplicate pair in same round: %s vs %s (R%d)", key.a, key.b, f.Round)
		}
		pairs[key] = true

		if len(table) > 0 {
			for _, p := range []string{f.A, f.B} {
				if !inLeague[p] {
					r.add(SeverityError, "Unknown player", fixturesFile, f.Line,
						"%q in fixtures but missing from league.csv (Season %s)", p, season)
				}
			}
		}

		if f.Played {
			playedBy[f.A]++
			playedBy[f.B]++
			if f.Winner != "" {
				winsBy[f.Winner]++
			}
		}
	}

	if len(table) == 0 {
		if len(d.League) > 0 {
			r.add(SeverityError, "Missing season", leagueFile, 0, "No league.csv rows found for Season %s", season)
		} else {
			r.add(SeverityWarning, "No league sheet", leagueFile, 0, "Standings will be derived from played fixtures")
		}
		return r
	}

	posSeen := make(map[int]bool, len(table))
	for _, row := range table {
		if row.Pos == 0 {
			r.add(SeverityError, "Pos missing", leagueFile, row.Line, "Missing Pos for player %q", row.Player)
		} else if posSeen[row.Pos] {
			r.add(SeverityError, "Pos duplicate", leagueFile, row.Line, "Duplicate Pos %d in league.csv", row.Pos)
		} else {
			posSeen[row.Pos] = true
		}

		if !row.Numeric {
			r.add(SeverityWarning, "Non-numeric", leagueFile, row.Line, "Some numeric fields not numeric for %q", row.Player)
		}
		if row.W+row.L != row.P {
			r.add(SeverityWarning, "P mismatch", leagueFile, row.Line, "%q: W+L (%d) != P (%d)", row.Player, row.W+row.L, row.P)
		}
		if row.BF-row.BA != row.BD {
			r.add(SeverityWarning, "BD mismatch", leagueFile, row.Line, "%q: BF-BA (%d) != BD (%d)", row.Player, row.BF-row.BA, row.BD)
		}
		if row.W > row.P {
			r.add(SeverityError, "W above P", leagueFile, row.Line, "%q: W (%d) > P (%d)", row.Player, row.W, row.P)
		}
		if row.PTS < 3*row.W {
			r.add(SeverityError, "PTS too low", leagueFile, row.Line, "%q: PTS (%d) < Wins*3 (%d)", row.Player, row.PTS, 3*row.W)
		}

		if fp := playedBy[row.Player]; len(fixtures) > 0 && fp != row.P {
			r.add(SeverityWarning, "Played mismatch", leagueFile, row.Line,
				"%q: league P=%d but fixtures played=%d", row.Player, row.P, fp)
		}
		if fw := winsBy[row.Player]; len(fixtures) > 0 && fw != row.W {
			r.add(SeverityWarning, "Wins mismatch", leagueFile, row.Line,
				"%q: league W=%d but fixtures wins=%d", row.Player, row.W, fw)
		}
	}
	return r
}
