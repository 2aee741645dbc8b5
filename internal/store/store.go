package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Boflo-hub/pima-poa-league/internal/league"
)

// Store wraps a Postgres connection holding standings and fixtures.
type Store struct {
	DB     *sql.DB
	logger logrus.FieldLogger
}

// NewStore opens a Postgres connection using the given connection string.
func NewStore(ctx context.Context, connStr string, logger logrus.FieldLogger) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// verify early
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	logger = logger.WithField("component", "store")
	logger.Debug("database connection established")
	return &Store{DB: db, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS competitors (
        season  TEXT NOT NULL,
        id      TEXT NOT NULL,
        pos     INT  NOT NULL DEFAULT 0,
        points  INT  NOT NULL DEFAULT 0,
        wins    INT  NOT NULL DEFAULT 0,
        played  INT  NOT NULL DEFAULT 0,
        PRIMARY KEY (season, id),
        CHECK (wins <= played)
    );
    `,
		`CREATE TABLE IF NOT EXISTS fixtures (
		    id       SERIAL PRIMARY KEY,
		    season   TEXT    NOT NULL,
		    round    INT     NOT NULL,
		    player_a TEXT    NOT NULL,
		    player_b TEXT    NOT NULL,
		    played   BOOLEAN NOT NULL DEFAULT FALSE,
		    winner   TEXT    NOT NULL DEFAULT ''
		);`,
		`ALTER TABLE competitors ADD COLUMN IF NOT EXISTS ball_diff INT NOT NULL DEFAULT 0;`,
		`CREATE INDEX IF NOT EXISTS fixtures_season_round ON fixtures (season, round, id);`,
	}
	for _, q := range queries {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// ImportSeason replaces everything stored for season with s.
func (s *Store) ImportSeason(ctx context.Context, season *league.Season) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ImportSeason tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fixtures WHERE season = $1`, season.Name); err != nil {
		return fmt.Errorf("clearing fixtures of %s: %w", season.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM competitors WHERE season = $1`, season.Name); err != nil {
		return fmt.Errorf("clearing competitors of %s: %w", season.Name, err)
	}

	const insertCompetitor = `
    INSERT INTO competitors (season, id, pos, points, wins, played, ball_diff)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	for i, c := range season.Competitors {
		if _, err := tx.ExecContext(ctx, insertCompetitor, season.Name, c.ID, i+1, c.Points, c.Wins, c.Played, c.BallDiff); err != nil {
			return fmt.Errorf("inserting competitor %s: %w", c.ID, err)
		}
	}

	const insertFixture = `
INSERT INTO fixtures (season, round, player_a, player_b, played, winner)
VALUES ($1, $2, $3, $4, $5, $6)
`
	for _, r := range season.Results {
		if _, err := tx.ExecContext(ctx, insertFixture, season.Name, r.Round, r.A, r.B, true, r.Winner); err != nil {
			return fmt.Errorf("inserting result %s vs %s: %w", r.A, r.B, err)
		}
	}
	for _, f := range season.Remaining {
		if _, err := tx.ExecContext(ctx, insertFixture, season.Name, f.Round, f.A, f.B, false, ""); err != nil {
			return fmt.Errorf("inserting fixture %s vs %s: %w", f.A, f.B, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ImportSeason tx: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"season":      season.Name,
		"competitors": len(season.Competitors),
		"results":     len(season.Results),
		"remaining":   len(season.Remaining),
	}).Info("season imported")
	return nil
}

// Seasons lists the stored seasons.
func (s *Store) Seasons(ctx context.Context) ([]string, error) {
	const q = `
    SELECT season FROM competitors
    UNION
    SELECT season FROM fixtures
    ORDER BY season
    `
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying seasons: %w", err)
	}
	defer rows.Close()

	var seasons []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning season row: %w", err)
		}
		seasons = append(seasons, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating season rows: %w", err)
	}
	return seasons, nil
}

// Season loads the standings and fixtures of one season.
func (s *Store) Season(ctx context.Context, name string) (*league.Season, error) {
	competitors, err := s.competitors(ctx, name)
	if err != nil {
		return nil, err
	}
	season := &league.Season{Name: name, Competitors: competitors}
	if err := s.fixtures(ctx, season); err != nil {
		return nil, err
	}
	if len(season.Competitors) == 0 && len(season.Remaining) == 0 && len(season.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", league.ErrUnknownSeason, name)
	}
	return season, nil
}

func (s *Store) competitors(ctx context.Context, season string) ([]league.Competitor, error) {
	const q = `
        SELECT id, points, wins, played, ball_diff
        FROM competitors
        WHERE season = $1
        ORDER BY pos, id
    `
	rows, err := s.DB.QueryContext(ctx, q, season)
	if err != nil {
		return nil, fmt.Errorf("querying competitors: %w", err)
	}
	defer rows.Close()

	var out []league.Competitor
	for rows.Next() {
		var c league.Competitor
		if err := rows.Scan(&c.ID, &c.Points, &c.Wins, &c.Played, &c.BallDiff); err != nil {
			return nil, fmt.Errorf("scanning competitor row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating competitor rows: %w", err)
	}
	return out, nil
}

func (s *Store) fixtures(ctx context.Context, season *league.Season) error {
	const q = `
SELECT round, player_a, player_b, played, winner
FROM fixtures
WHERE season = $1
ORDER BY round, id;
`
	rows, err := s.DB.QueryContext(ctx, q, season.Name)
	if err != nil {
		return fmt.Errorf("querying fixtures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			round  int
			a, b   string
			played bool
			winner string
		)
		if err := rows.Scan(&round, &a, &b, &played, &winner); err != nil {
			return fmt.Errorf("scanning fixture: %w", err)
		}
		if played {
			season.Results = append(season.Results, league.Result{Round: round, A: a, B: b, Winner: winner})
		} else {
			season.Remaining = append(season.Remaining, league.Fixture{Round: round, A: a, B: b})
		}
	}
	return rows.Err()
}
