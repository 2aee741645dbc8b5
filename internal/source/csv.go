package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when a sheet lacks a required header.
var ErrMissingColumn = errors.New("missing column")

// FixtureRow is one line of fixtures.csv.
type FixtureRow struct {
	Line   int    `json:"line"`
	Season string `json:"season"`
	Round  int    `json:"round"`
	A      string `json:"a"`
	B      string `json:"b"`
	// PlayedRaw keeps the cell as written so validation can flag oddities.
	PlayedRaw string `json:"played_raw"`
	Played    bool   `json:"played"`
	Winner    string `json:"winner"`
}

// LeagueRow is one line of league.csv.
type LeagueRow struct {
	Line   int    `json:"line"`
	Season string `json:"season"`
	Pos    int    `json:"pos"`
	Player string `json:"player"`
	P      int    `json:"p"`
	W      int    `json:"w"`
	L      int    `json:"l"`
	BF     int    `json:"bf"`
	BA     int    `json:"ba"`
	BD     int    `json:"bd"`
	Seven  int    `json:"seven_ball"`
	BP     int    `json:"bp"`
	PTS    int    `json:"pts"`
	// Numeric is false when any numeric cell failed to parse.
	Numeric bool `json:"numeric"`
}

// normHeader lower-cases a header and collapses inner whitespace.
func normHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

type header map[string]int

func readSheet(r io.Reader, required ...string) (header, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv: %w", err)
	}
	// skip leading blank lines
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty sheet", ErrMissingColumn)
	}

	h := make(header, len(records[0]))
	for i, name := range records[0] {
		h[normHeader(name)] = i
	}
	for _, name := range required {
		if _, ok := h[normHeader(name)]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return h, records[1:], nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (h header) cell(record []string, name string) string {
	i, ok := h[normHeader(name)]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (h header) number(record []string, name string) (int, bool) {
	v := h.cell(record, name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return 0, false
		}
		return int(f), true
	}
	return n, true
}

// ParseFixtures reads fixtures.csv. Rows missing a season, a numeric round
// or either player are dropped.
func ParseFixtures(r io.Reader) ([]FixtureRow, error) {
	h, records, err := readSheet(r, "Season", "Round", "Player A", "Player B", "Played?", "Winner")
	if err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}

	rows := make([]FixtureRow, 0, len(records))
	for i, rec := range records {
		if blank(rec) {
			continue
		}
		row := FixtureRow{
			Line:      i + 2,
			Season:    h.cell(rec, "Season"),
			A:         h.cell(rec, "Player A"),
			B:         h.cell(rec, "Player B"),
			PlayedRaw: h.cell(rec, "Played?"),
			Winner:    h.cell(rec, "Winner"),
		}
		round, err := strconv.Atoi(h.cell(rec, "Round"))
		if err != nil || row.Season == "" || row.A == "" || row.B == "" {
			continue
		}
		row.Round = round
		row.Played = strings.EqualFold(row.PlayedRaw, "YES")
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseLeague reads league.csv. Numeric cells that do not parse read as 0.
func ParseLeague(r io.Reader) ([]LeagueRow, error) {
	h, records, err := readSheet(r, "Season", "Pos", "Player", "PTS")
	if err != nil {
		return nil, fmt.Errorf("league: %w", err)
	}

	rows := make([]LeagueRow, 0, len(records))
	for i, rec := range records {
		if blank(rec) {
			continue
		}
		row := LeagueRow{
			Line:    i + 2,
			Season:  h.cell(rec, "Season"),
			Player:  h.cell(rec, "Player"),
			Numeric: true,
		}
		if row.Season == "" || row.Player == "" {
			continue
		}
		for _, f := range []struct {
			name string
			dst  *int
		}{
			{"Pos", &row.Pos}, {"P", &row.P}, {"W", &row.W}, {"L", &row.L},
			{"BF", &row.BF}, {"BA", &row.BA}, {"BD", &row.BD},
			{"7B", &row.Seven}, {"BP", &row.BP}, {"PTS", &row.PTS},
		} {
			n, ok := h.number(rec, f.name)
			*f.dst = n
			row.Numeric = row.Numeric && ok
		}
		rows = append(rows, row)
	}
	return rows, nil
}
