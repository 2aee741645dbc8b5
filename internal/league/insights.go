package league

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// RoundProgress is how much of one round has been played.
type RoundProgress struct {
	Round  int `json:"round"`
	Played int `json:"played"`
	Total  int `json:"total"`
	// Pct is Played/Total as a rounded percentage, 0 for an empty round.
	Pct int `json:"pct"`
}

// Progress reports every round of the season, lowest first.
func Progress(remaining []Fixture, results []Result) []RoundProgress {
	rounds := make(map[int]*RoundProgress)
	get := func(round int) *RoundProgress {
		p, ok := rounds[round]
		if !ok {
			p = &RoundProgress{Round: round}
			rounds[round] = p
		}
		return p
	}
	for _, r := range results {
		p := get(r.Round)
		p.Played++
		p.Total++
	}
	for _, f := range remaining {
		get(f.Round).Total++
	}

	out := make([]RoundProgress, 0, len(rounds))
	for _, p := range rounds {
		if p.Total > 0 {
			p.Pct = int(math.Round(float64(p.Played) / float64(p.Total) * 100))
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// FormEntry counts the wins of a competitor over its last Sample decided
// results.
type FormEntry struct {
	ID     string `json:"id"`
	Wins   int    `json:"wins"`
	Sample int    `json:"sample"`
}

// LastNForm ranks competitors by wins over their last n decided results,
// then by sample size, then by id. Results without a winner are ignored.
func LastNForm(results []Result, n int) []FormEntry {
	decided := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Winner != "" {
			decided = append(decided, r)
		}
	}
	sort.SliceStable(decided, func(i, j int) bool { return decided[i].Round < decided[j].Round })

	history := make(map[string][]bool)
	var ids []string
	push := func(id string, won bool) {
		if _, ok := history[id]; !ok {
			ids = append(ids, id)
		}
		history[id] = append(history[id], won)
	}
	for _, r := range decided {
		push(r.A, r.Winner == r.A)
		push(r.B, r.Winner == r.B)
	}

	out := make([]FormEntry, 0, len(ids))
	for _, id := range ids {
		h := history[id]
		if n > 0 && len(h) > n {
			h = h[len(h)-n:]
		}
		e := FormEntry{ID: id, Sample: len(h)}
		for _, won := range h {
			if won {
				e.Wins++
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Sample != b.Sample {
			return a.Sample > b.Sample
		}
		return a.ID < b.ID
	})
	return out
}

// HotCold picks the hottest and coldest entries of a LastNForm ranking. The
// coldest is the first entry holding the fewest wins.
func HotCold(form []FormEntry) (hot, cold FormEntry, ok bool) {
	if len(form) == 0 {
		return FormEntry{}, FormEntry{}, false
	}
	hot, cold = form[0], form[0]
	for _, e := range form[1:] {
		if e.Wins < cold.Wins {
			cold = e
		}
	}
	return hot, cold, true
}

// MaxUpsets caps the list returned by Upsets.
const MaxUpsets = 12

// Upset is a result won by the lower placed competitor.
type Upset struct {
	Round     int    `json:"round"`
	Winner    string `json:"winner"`
	Loser     string `json:"loser"`
	WinnerPos int    `json:"winner_pos"`
	LoserPos  int    `json:"loser_pos"`
	// Gap is how many places below the loser the winner stands.
	Gap int `json:"gap"`
}

// Upsets lists results whose winner holds a worse table position than the
// loser, biggest gap first and latest round first within a gap. Results
// with a competitor missing from positions are ignored.
func Upsets(results []Result, positions map[string]int) []Upset {
	var out []Upset
	for _, r := range results {
		if r.Winner == "" {
			continue
		}
		loser := r.A
		if r.Winner == r.A {
			loser = r.B
		}
		wPos, lPos := positions[r.Winner], positions[loser]
		if wPos == 0 || lPos == 0 || wPos <= lPos {
			continue
		}
		out = append(out, Upset{
			Round:     r.Round,
			Winner:    r.Winner,
			Loser:     loser,
			WinnerPos: wPos,
			LoserPos:  lPos,
			Gap:       wPos - lPos,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Gap != out[j].Gap {
			return out[i].Gap > out[j].Gap
		}
		return out[i].Round > out[j].Round
	})
	if len(out) > MaxUpsets {
		out = out[:MaxUpsets]
	}
	return out
}

// Positions maps every competitor to its 1-based place in table order.
func Positions(competitors []Competitor) map[string]int {
	ranked := Rank(competitors)
	out := make(map[string]int, len(ranked))
	for i, c := range ranked {
		out[c.ID] = i + 1
	}
	return out
}

// Movement of a competitor between two power rankings.
const (
	MoveUp   = "up"
	MoveDown = "down"
	MoveSame = "same"
)

// PowerEntry is one line of the power rankings.
type PowerEntry struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"`
	Power float64 `json:"power"`

	Form   []string `json:"form"`
	Streak string   `json:"streak"`

	FormScore   float64 `json:"form_score"`
	StreakBonus float64 `json:"streak_bonus"`
	RoundScore  float64 `json:"round_score"`
	SeasonScore float64 `json:"season_score"`

	RoundPlayed int `json:"round_played"`
	RoundWins   int `json:"round_wins"`
	RoundLosses int `json:"round_losses"`

	Why string `json:"why"`

	// Move compares Rank with the ranking of the previous round; Delta is
	// the number of places gained.
	Move  string `json:"move"`
	Delta int    `json:"delta"`
}

// PowerFormLength is the number of recent results scored by the power
// rankings.
const PowerFormLength = 5

// PowerRankings rates every competitor after round from its recent form,
// its current streak, its record in round and its season points and ball
// difference. Movement is measured against the rankings of the round
// before; both rankings cover the same competitors.
func PowerRankings(results []Result, remaining []Fixture, competitors []Competitor, round int) []PowerEntry {
	cur := powerList(results, remaining, competitors, round)
	prev := powerList(results, remaining, competitors, max(1, round-1))

	prevRank := make(map[string]int, len(prev))
	for _, e := range prev {
		prevRank[e.ID] = e.Rank
	}
	for i := range cur {
		e := &cur[i]
		e.Delta = prevRank[e.ID] - e.Rank
		switch {
		case e.Delta > 0:
			e.Move = MoveUp
		case e.Delta < 0:
			e.Move = MoveDown
		default:
			e.Move = MoveSame
		}
	}
	return cur
}

func powerList(results []Result, remaining []Fixture, competitors []Competitor, round int) []PowerEntry {
	var upTo []Result
	for _, r := range results {
		if r.Round <= round {
			upTo = append(upTo, r)
		}
	}

	season := make(map[string]Competitor, len(competitors))
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range results {
		add(r.A)
		add(r.B)
	}
	for _, f := range remaining {
		add(f.A)
		add(f.B)
	}
	for _, c := range competitors {
		season[c.ID] = c
		add(c.ID)
	}

	out := make([]PowerEntry, 0, len(ids))
	for _, id := range ids {
		e := PowerEntry{
			ID:     id,
			Form:   Form(upTo, id, PowerFormLength),
			Streak: Streak(upTo, id),
		}
		for _, res := range e.Form {
			if res == "W" {
				e.FormScore += PointsPerWin
			}
		}
		if len(e.Streak) > 1 {
			if length, err := strconv.Atoi(e.Streak[1:]); err == nil {
				if e.Streak[0] == 'W' {
					e.StreakBonus = math.Min(6, float64(length)*1.5)
				} else {
					e.StreakBonus = -math.Min(4, float64(length))
				}
			}
		}
		e.RoundPlayed, e.RoundWins, e.RoundLosses = roundRecord(results, remaining, round, id)
		e.RoundScore = float64(e.RoundWins*2 - e.RoundLosses)

		c := season[id]
		e.SeasonScore = float64(c.Points)*0.4 + float64(c.BallDiff)*0.15
		e.Power = e.FormScore + e.StreakBonus + e.RoundScore + e.SeasonScore
		e.Why = fmt.Sprintf("Form %.0f • Streak %+.1f • Round %d-%d • Season %dpts / BD %d",
			e.FormScore, e.StreakBonus, e.RoundWins, e.RoundLosses, c.Points, c.BallDiff)
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Power != out[j].Power {
			return out[i].Power > out[j].Power
		}
		return out[i].ID < out[j].ID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// roundRecord counts the fixtures of id in round, played or not, and its
// wins and losses among the played ones.
func roundRecord(results []Result, remaining []Fixture, round int, id string) (played, wins, losses int) {
	for _, r := range results {
		if r.Round != round || (r.A != id && r.B != id) {
			continue
		}
		played++
		if r.Winner == id {
			wins++
		} else {
			losses++
		}
	}
	for _, f := range remaining {
		if f.Round == round && (f.A == id || f.B == id) {
			played++
		}
	}
	return played, wins, losses
}
