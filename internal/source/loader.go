package source

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Boflo-hub/pima-poa-league/internal/league"
)

// Loader reads the fixtures and league sheets on every call so edits to
// the sheets show up without a restart.
type Loader struct {
	FixturesPath string
	LeaguePath   string
	fetcher      *Fetcher
	logger       logrus.FieldLogger
}

// NewLoader returns a Loader for the two sheet locations. LeaguePath may be
// empty, standings are then derived from played fixtures.
func NewLoader(fixturesPath, leaguePath string, fetcher *Fetcher, logger logrus.FieldLogger) *Loader {
	return &Loader{
		FixturesPath: fixturesPath,
		LeaguePath:   leaguePath,
		fetcher:      fetcher,
		logger:       logger.WithField("component", "csv_loader"),
	}
}

// Load reads and parses both sheets. A league sheet that cannot be read is
// logged and treated as empty.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	rc, err := l.fetcher.Open(ctx, l.FixturesPath)
	if err != nil {
		return nil, fmt.Errorf("opening fixtures %s: %w", l.FixturesPath, err)
	}
	fixtures, err := ParseFixtures(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.FixturesPath, err)
	}

	d := &Dataset{Fixtures: fixtures}
	if l.LeaguePath == "" {
		return d, nil
	}

	rc, err = l.fetcher.Open(ctx, l.LeaguePath)
	if err != nil {
		l.logger.WithError(err).WithField("path", l.LeaguePath).Warn("league sheet unavailable, deriving standings from fixtures")
		return d, nil
	}
	defer rc.Close()
	rows, err := ParseLeague(rc)
	if err != nil {
		l.logger.WithError(err).WithField("path", l.LeaguePath).Warn("league sheet unreadable, deriving standings from fixtures")
		return d, nil
	}
	d.League = rows
	return d, nil
}

// Seasons lists the seasons present in the sheets.
func (l *Loader) Seasons(ctx context.Context) ([]string, error) {
	d, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return d.Seasons(), nil
}

// Season loads one season.
func (l *Loader) Season(ctx context.Context, name string) (*league.Season, error) {
	d, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return d.Season(name)
}
