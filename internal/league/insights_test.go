package league

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourPlayerSeason has two rounds played and a third one pending.
func fourPlayerSeason() ([]Competitor, []Result, []Fixture) {
	competitors := []Competitor{
		{ID: "Ann", Points: 6, Wins: 2, Played: 2},
		{ID: "Ben", Points: 3, Wins: 1, Played: 2},
		{ID: "Cat", Points: 3, Wins: 1, Played: 2},
		{ID: "Dan", Points: 0, Wins: 0, Played: 2},
	}
	results := []Result{
		{Round: 1, A: "Ann", B: "Ben", Winner: "Ann"},
		{Round: 1, A: "Cat", B: "Dan", Winner: "Cat"},
		{Round: 2, A: "Ann", B: "Cat", Winner: "Ann"},
		{Round: 2, A: "Ben", B: "Dan", Winner: "Ben"},
	}
	remaining := []Fixture{
		{Round: 3, A: "Ann", B: "Dan"},
		{Round: 3, A: "Ben", B: "Cat"},
	}
	return competitors, results, remaining
}

func TestProgress(t *testing.T) {
	results := []Result{
		{Round: 2, A: "a", B: "b", Winner: "a"},
		{Round: 1, A: "a", B: "c", Winner: "c"},
		{Round: 2, A: "c", B: "d"},
	}
	remaining := []Fixture{{Round: 2, A: "b", B: "d"}, {Round: 3, A: "a", B: "d"}}

	assert.Equal(t, []RoundProgress{
		{Round: 1, Played: 1, Total: 1, Pct: 100},
		{Round: 2, Played: 2, Total: 3, Pct: 67},
		{Round: 3, Played: 0, Total: 1, Pct: 0},
	}, Progress(remaining, results))
	assert.Empty(t, Progress(nil, nil))
}

func TestLastNForm(t *testing.T) {
	results := []Result{
		{Round: 3, A: "a", B: "b", Winner: "b"},
		{Round: 1, A: "a", B: "b", Winner: "a"},
		{Round: 2, A: "a", B: "c", Winner: "a"},
		{Round: 2, A: "b", B: "c"}, // no winner, ignored
	}

	form := LastNForm(results, 2)
	assert.Equal(t, []FormEntry{
		{ID: "a", Wins: 1, Sample: 2},
		{ID: "b", Wins: 1, Sample: 2},
		{ID: "c", Wins: 0, Sample: 1},
	}, form)

	hot, cold, ok := HotCold(form)
	require.True(t, ok)
	assert.Equal(t, "a", hot.ID)
	assert.Equal(t, "c", cold.ID)

	// a full history puts a ahead on wins
	assert.Equal(t, FormEntry{ID: "a", Wins: 2, Sample: 3}, LastNForm(results, 5)[0])

	_, _, ok = HotCold(nil)
	assert.False(t, ok)
}

func TestHotCold_ColdIsFirstWithFewestWins(t *testing.T) {
	form := []FormEntry{
		{ID: "x", Wins: 3, Sample: 5},
		{ID: "y", Wins: 1, Sample: 5},
		{ID: "z", Wins: 1, Sample: 4},
	}
	hot, cold, ok := HotCold(form)
	require.True(t, ok)
	assert.Equal(t, "x", hot.ID)
	assert.Equal(t, "y", cold.ID)
}

func TestUpsets(t *testing.T) {
	positions := map[string]int{"A": 1, "B": 2, "C": 3, "D": 4}
	results := []Result{
		{Round: 1, A: "A", B: "D", Winner: "D"},
		{Round: 1, A: "A", B: "B", Winner: "A"},
		{Round: 2, A: "B", B: "C", Winner: "C"},
		{Round: 2, A: "C", B: "D"},
		{Round: 3, A: "A", B: "B", Winner: "B"},
		{Round: 4, A: "X", B: "A", Winner: "X"},
	}

	assert.Equal(t, []Upset{
		{Round: 1, Winner: "D", Loser: "A", WinnerPos: 4, LoserPos: 1, Gap: 3},
		{Round: 3, Winner: "B", Loser: "A", WinnerPos: 2, LoserPos: 1, Gap: 1},
		{Round: 2, Winner: "C", Loser: "B", WinnerPos: 3, LoserPos: 2, Gap: 1},
	}, Upsets(results, positions))
}

func TestUpsets_Capped(t *testing.T) {
	positions := map[string]int{"A": 1, "B": 2}
	var results []Result
	for r := 1; r <= MaxUpsets+3; r++ {
		results = append(results, Result{Round: r, A: "A", B: "B", Winner: "B"})
	}

	upsets := Upsets(results, positions)
	require.Len(t, upsets, MaxUpsets)
	assert.Equal(t, MaxUpsets+3, upsets[0].Round, "latest round first")
}

func TestPositions(t *testing.T) {
	competitors, _, _ := fourPlayerSeason()
	assert.Equal(t, map[string]int{"Ann": 1, "Ben": 2, "Cat": 3, "Dan": 4}, Positions(competitors))
}

func TestPowerRankings(t *testing.T) {
	competitors, results, remaining := fourPlayerSeason()

	power := PowerRankings(results, remaining, competitors, 2)
	require.Len(t, power, 4)

	ids := make([]string, len(power))
	for i, e := range power {
		ids[i] = e.ID
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, []string{"Ann", "Ben", "Cat", "Dan"}, ids)

	ann := power[0]
	assert.InDelta(t, 13.4, ann.Power, 1e-9)
	assert.Equal(t, []string{"W", "W"}, ann.Form)
	assert.Equal(t, "W2", ann.Streak)
	assert.InDelta(t, 6.0, ann.FormScore, 1e-9)
	assert.InDelta(t, 3.0, ann.StreakBonus, 1e-9)
	assert.InDelta(t, 2.0, ann.RoundScore, 1e-9)
	assert.InDelta(t, 2.4, ann.SeasonScore, 1e-9)
	assert.Equal(t, MoveSame, ann.Move)

	// after round one Cat sat second and Ben third
	ben := power[1]
	assert.InDelta(t, 7.7, ben.Power, 1e-9)
	assert.Equal(t, MoveUp, ben.Move)
	assert.Equal(t, 1, ben.Delta)
	assert.Equal(t, "Form 3 • Streak +1.5 • Round 1-0 • Season 3pts / BD 0", ben.Why)

	cat := power[2]
	assert.Equal(t, MoveDown, cat.Move)
	assert.Equal(t, -1, cat.Delta)

	dan := power[3]
	assert.InDelta(t, -3.0, dan.Power, 1e-9)
	assert.Equal(t, "Form 0 • Streak -2.0 • Round 0-1 • Season 0pts / BD 0", dan.Why)
}

func TestPowerRankings_PendingRoundAndBallDiff(t *testing.T) {
	competitors, results, remaining := fourPlayerSeason()
	competitors[3].BallDiff = 20
	// a player only named by the schedule still gets a line
	remaining = append(remaining, Fixture{Round: 3, A: "Eve", B: "Ann"})

	power := PowerRankings(results, remaining, competitors, 3)
	require.Len(t, power, 5)

	byID := make(map[string]PowerEntry, len(power))
	for _, e := range power {
		byID[e.ID] = e
	}
	ann := byID["Ann"]
	assert.Equal(t, 2, ann.RoundPlayed)
	assert.Equal(t, 0, ann.RoundWins+ann.RoundLosses)
	assert.InDelta(t, 11.4, ann.Power, 1e-9)

	// 20 * 0.15 lifts Dan from -2 to 1
	assert.InDelta(t, 1.0, byID["Dan"].Power, 1e-9)
	assert.InDelta(t, 0.0, byID["Eve"].Power, 1e-9)
	assert.Equal(t, "-", byID["Eve"].Streak)
	assert.Equal(t, "Ann", power[0].ID)
}
