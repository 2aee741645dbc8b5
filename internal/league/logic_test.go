package league

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobin_EveryPairOnce(t *testing.T) {
	for _, ids := range [][]string{
		{"a", "b", "c", "d"},
		{"a", "b", "c", "d", "e"},
	} {
		rounds := RoundRobin(ids)

		seen := make(map[[2]string]int)
		for i, round := range rounds {
			playing := make(map[string]bool)
			for _, f := range round {
				assert.Equal(t, i+1, f.Round)
				assert.NotEqual(t, f.A, f.B)
				assert.False(t, playing[f.A] || playing[f.B], "competitor twice in round %d", f.Round)
				playing[f.A], playing[f.B] = true, true

				key := [2]string{f.A, f.B}
				if f.B < f.A {
					key = [2]string{f.B, f.A}
				}
				seen[key]++
			}
		}
		n := len(ids)
		assert.Len(t, seen, n*(n-1)/2)
		for pair, c := range seen {
			assert.Equal(t, 1, c, "pair %v", pair)
		}
	}
	assert.Nil(t, RoundRobin([]string{"solo"}))
}

func TestRoundRobin_DoesNotMutateInput(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	RoundRobin(ids)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestCalculateTable(t *testing.T) {
	results := []Result{
		{Round: 1, A: "ann", B: "ben", Winner: "ann"},
		{Round: 1, A: "cat", B: "dan", Winner: "dan"},
		{Round: 2, A: "ann", B: "cat", Winner: "ann"},
		{Round: 2, A: "ben", B: "dan", Winner: "ben"},
		{Round: 3, A: "ann", B: "dan", Winner: ""},
	}

	table := CalculateTable(results)
	require.Len(t, table, 4)
	assert.Equal(t, TableEntry{ID: "ann", Played: 3, Wins: 2, Losses: 0, Points: 6}, table[0])
	assert.Equal(t, TableEntry{ID: "ben", Played: 2, Wins: 1, Losses: 1, Points: 3}, table[1])
	assert.Equal(t, TableEntry{ID: "dan", Played: 3, Wins: 1, Losses: 1, Points: 3}, table[2])
	assert.Equal(t, TableEntry{ID: "cat", Played: 2, Wins: 0, Losses: 2, Points: 0}, table[3])

	competitors := Competitors(table)
	assert.Equal(t, Competitor{ID: "ann", Points: 6, Wins: 2, Played: 3}, competitors[0])
}

func TestCurrentRound(t *testing.T) {
	results := []Result{{Round: 1}, {Round: 2}, {Round: 3}}
	assert.Equal(t, 2, CurrentRound([]Fixture{{Round: 4}, {Round: 2}}, results))
	assert.Equal(t, 3, CurrentRound(nil, results))
	assert.Equal(t, 0, CurrentRound(nil, nil))
}

func TestFormAndStreak(t *testing.T) {
	results := []Result{
		{Round: 3, A: "ann", B: "ben", Winner: "ann"},
		{Round: 1, A: "ann", B: "cat", Winner: "cat"},
		{Round: 2, A: "dan", B: "ann", Winner: "ann"},
		{Round: 4, A: "ann", B: "dan", Winner: "ann"},
		{Round: 4, A: "ben", B: "cat", Winner: "ben"},
	}

	assert.Equal(t, []string{"L", "W", "W", "W"}, Form(results, "ann", 5))
	assert.Equal(t, []string{"W", "W"}, Form(results, "ann", 2))
	assert.Equal(t, "W3", Streak(results, "ann"))
	assert.Equal(t, "L2", Streak(results, "dan"))
	assert.Equal(t, "W1", Streak(results, "ben"))
	assert.Equal(t, "-", Streak(results, "eve"))
	assert.Empty(t, Form(results, "eve", 5))
}

func TestHeadToHead(t *testing.T) {
	results := []Result{
		{Round: 1, A: "ann", B: "ben", Winner: "ann"},
		{Round: 5, A: "ben", B: "ann", Winner: "ben"},
		{Round: 6, A: "ann", B: "ben", Winner: "ann"},
		{Round: 6, A: "ann", B: "cat", Winner: "ann"},
	}
	pending := []Fixture{{Round: 9, A: "ben", B: "ann"}, {Round: 9, A: "cat", B: "ben"}}

	h := HeadToHead(results, pending, "ann", "ben")
	assert.Equal(t, H2H{A: "ann", B: "ben", Meetings: 4, Played: 3, WinsA: 2, WinsB: 1}, h)
}

func TestPrintForecast(t *testing.T) {
	res := &SimulationResult{Runs: 10, Seed: 1, Workers: 1, Outcomes: []Outcome{
		{ID: "second", ExpectedRank: 2, ExpectedPoints: 3},
		{ID: "first", ExpectedRank: 1, ExpectedPoints: 9, TitlePct: 100},
	}}

	var buf bytes.Buffer
	PrintForecast(&buf, "Forecast", res)
	out := buf.String()

	assert.Contains(t, out, "Forecast\n")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("first")), bytes.Index(buf.Bytes(), []byte("second")))
	assert.Contains(t, out, "runs=10 seed=1")
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, "Table", []TableEntry{{ID: "ann", Played: 2, Wins: 2, Points: 6}})
	assert.Contains(t, buf.String(), "ann")
	assert.Contains(t, buf.String(), "Pts")
}
