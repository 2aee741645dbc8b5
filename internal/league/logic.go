// internal/league/logic.go
package league

import (
	"fmt"
	"io"
	"sort"
)

// RoundRobin returns a single round-robin schedule for the provided ids.
// It outputs a slice of rounds, each round being a slice of fixtures.
func RoundRobin(ids []string) [][]Fixture {
	// work on a copy, the rotation below mutates it
	slots := make([]string, len(ids))
	copy(slots, ids)

	// odd number of competitors: add an empty placeholder (bye)
	if len(slots)%2 != 0 {
		slots = append(slots, "")
	}
	n := len(slots)
	if n < 2 {
		return nil
	}

	rounds := make([][]Fixture, n-1)
	for i := 0; i < n-1; i++ {
		round := make([]Fixture, 0, n/2)
		for j := 0; j < n/2; j++ {
			a, b := slots[j], slots[n-1-j]
			if a != "" && b != "" {
				round = append(round, Fixture{Round: i + 1, A: a, B: b})
			}
		}
		rounds[i] = round

		// rotate everyone except the first slot
		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}
	return rounds
}

// Flatten concatenates rounds into one fixture list in round order.
func Flatten(rounds [][]Fixture) []Fixture {
	var out []Fixture
	for _, r := range rounds {
		out = append(out, r...)
	}
	return out
}

// CalculateTable builds standings from played results. A result without a
// recorded winner counts as a game played for both sides and nothing else.
func CalculateTable(results []Result) []TableEntry {
	entries := make(map[string]*TableEntry)
	entry := func(id string) *TableEntry {
		e, ok := entries[id]
		if !ok {
			e = &TableEntry{ID: id}
			entries[id] = e
		}
		return e
	}

	for _, r := range results {
		a, b := entry(r.A), entry(r.B)
		a.Played++
		b.Played++

		switch r.Winner {
		case r.A:
			a.Wins++
			a.Points += PointsPerWin
			b.Losses++
		case r.B:
			b.Wins++
			b.Points += PointsPerWin
			a.Losses++
		}
	}

	table := make([]TableEntry, 0, len(entries))
	for _, e := range entries {
		table = append(table, *e)
	}
	sort.Slice(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.ID < b.ID
	})
	return table
}

// Competitors turns table entries into simulator input.
func Competitors(table []TableEntry) []Competitor {
	out := make([]Competitor, len(table))
	for i, e := range table {
		out[i] = Competitor{ID: e.ID, Points: e.Points, Wins: e.Wins, Played: e.Played}
	}
	return out
}

// CurrentRound is the first round that still has a pending fixture, or the
// last known round once everything has been played.
func CurrentRound(remaining []Fixture, results []Result) int {
	current := 0
	for _, f := range remaining {
		if current == 0 || f.Round < current {
			current = f.Round
		}
	}
	if current != 0 {
		return current
	}
	for _, r := range results {
		if r.Round > current {
			current = r.Round
		}
	}
	return current
}

// byRound returns the results involving id, oldest round first. Results in
// the same round keep their listed order.
func byRound(results []Result, id string) []Result {
	var out []Result
	for _, r := range results {
		if r.A == id || r.B == id {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// Form returns the last n results of id as "W" or "L", oldest first.
func Form(results []Result, id string, n int) []string {
	played := byRound(results, id)
	if n > 0 && len(played) > n {
		played = played[len(played)-n:]
	}
	form := make([]string, 0, len(played))
	for _, r := range played {
		if r.Winner == id {
			form = append(form, "W")
		} else {
			form = append(form, "L")
		}
	}
	return form
}

// Streak describes the current run of identical results, like "W3" or "L2".
// It is "-" when id has not played.
func Streak(results []Result, id string) string {
	form := Form(results, id, 0)
	if len(form) == 0 {
		return "-"
	}
	last := form[len(form)-1]
	count := 0
	for i := len(form) - 1; i >= 0 && form[i] == last; i-- {
		count++
	}
	return fmt.Sprintf("%s%d", last, count)
}

// H2H summarises the meetings between two competitors in a season.
type H2H struct {
	A        string `json:"a"`
	B        string `json:"b"`
	Meetings int    `json:"meetings"`
	Played   int    `json:"played"`
	WinsA    int    `json:"wins_a"`
	WinsB    int    `json:"wins_b"`
}

// HeadToHead counts the fixtures, played or not, between a and b.
func HeadToHead(results []Result, remaining []Fixture, a, b string) H2H {
	h := H2H{A: a, B: b}
	meets := func(x, y string) bool { return (x == a && y == b) || (x == b && y == a) }

	for _, r := range results {
		if !meets(r.A, r.B) {
			continue
		}
		h.Meetings++
		h.Played++
		switch r.Winner {
		case a:
			h.WinsA++
		case b:
			h.WinsB++
		}
	}
	for _, f := range remaining {
		if meets(f.A, f.B) {
			h.Meetings++
		}
	}
	return h
}

// PrintTable writes standings as a fixed width table.
func PrintTable(w io.Writer, label string, table []TableEntry) {
	fmt.Fprintln(w, label)
	fmt.Fprintf(w, "%-3s %-20s %3s %3s %3s %4s\n", "#", "Player", "P", "W", "L", "Pts")
	for i, e := range table {
		fmt.Fprintf(w, "%-3d %-20s %3d %3d %3d %4d\n",
			i+1, e.ID, e.Played, e.Wins, e.Losses, e.Points)
	}
}

// PrintForecast writes the most likely final standings of a simulation.
func PrintForecast(w io.Writer, label string, r *SimulationResult) {
	fmt.Fprintln(w, label)
	fmt.Fprintf(w, "%-3s %-20s %6s %5s %7s %6s %7s\n",
		"#", "Player", "xPts", "xPos", "Title%", "Top%", "Bottom%")
	for i, o := range Standings(r) {
		fmt.Fprintf(w, "%-3d %-20s %6.2f %5.2f %7.1f %6.1f %7.1f\n",
			i+1, o.ID, o.ExpectedPoints, o.ExpectedRank, o.TitlePct, o.TopPct, o.BottomPct)
	}
	fmt.Fprintf(w, "runs=%d seed=%d workers=%d skipped=%d\n", r.Runs, r.Seed, r.Workers, r.Skipped)
}
