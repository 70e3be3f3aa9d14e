//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"bookedge/internal/accessgate/store"
	"bookedge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background()))
}

func (s *PostgresStoreSuite) TestDefaultsWhenTableEmpty() {
	state, err := s.store.FetchAccessState(context.Background())
	s.Require().NoError(err)
	s.False(state.MaintenanceMode)
	s.True(state.AllowRegistration)
	s.False(state.FetchedAt.IsZero())
}

func (s *PostgresStoreSuite) TestReadsStoredFlags() {
	ctx := context.Background()

	s.Require().NoError(s.store.SetMaintenanceMode(ctx, true))
	s.Require().NoError(s.store.SetAllowRegistration(ctx, false))

	state, err := s.store.FetchAccessState(ctx)
	s.Require().NoError(err)
	s.True(state.MaintenanceMode)
	s.False(state.AllowRegistration)
}

func (s *PostgresStoreSuite) TestUpsertOverwrites() {
	ctx := context.Background()

	s.Require().NoError(s.store.SetMaintenanceMode(ctx, true))
	s.Require().NoError(s.store.SetMaintenanceMode(ctx, false))

	state, err := s.store.FetchAccessState(ctx)
	s.Require().NoError(err)
	s.False(state.MaintenanceMode)
}

func (s *PostgresStoreSuite) TestMalformedValueKeepsDefault() {
	ctx := context.Background()

	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO system_settings (key, value) VALUES ('general.maintenance_mode', 'banana')`)
	s.Require().NoError(err)

	state, err := s.store.FetchAccessState(ctx)
	s.Require().NoError(err)
	s.False(state.MaintenanceMode, "unparseable values keep the key's default")
}
