//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vcregistry/internal/credential/models"
	"vcregistry/internal/credential/store"
	"vcregistry/pkg/testutil"
	"vcregistry/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateCredentials(context.Background()))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	withExpiry := testutil.NewCredentialBuilder().ExpiresAt(9_000).Build()
	noExpiry := testutil.NewCredentialBuilder().WithCID(testutil.CIDLicense).Build()

	s.Require().NoError(s.store.Insert(ctx, withExpiry))
	s.Require().NoError(s.store.Insert(ctx, noExpiry))

	got, err := s.store.FindByKey(ctx, withExpiry.Key())
	s.Require().NoError(err)
	s.Equal(withExpiry, *got)

	got, err = s.store.FindByKey(ctx, noExpiry.Key())
	s.Require().NoError(err)
	s.Nil(got.ExpiresAt)
}

func (s *PostgresStoreSuite) TestInsertDuplicate() {
	ctx := context.Background()
	c := testutil.NewCredentialBuilder().Build()
	s.Require().NoError(s.store.Insert(ctx, c))

	other := testutil.NewCredentialBuilder().WithIssuer(testutil.IssuerEmployer).Build()
	s.ErrorIs(s.store.Insert(ctx, other), store.ErrAlreadyExists)

	got, err := s.store.FindByKey(ctx, c.Key())
	s.Require().NoError(err)
	s.Equal(testutil.IssuerUniversity, got.Issuer)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByKey(context.Background(), models.KeyFor(testutil.SubjectBob, testutil.CIDDegree))
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdate() {
	ctx := context.Background()
	c := testutil.NewCredentialBuilder().Build()

	s.ErrorIs(s.store.Update(ctx, c), store.ErrNotFound)

	s.Require().NoError(s.store.Insert(ctx, c))
	c.Revoke()
	s.Require().NoError(s.store.Update(ctx, c))

	got, err := s.store.FindByKey(ctx, c.Key())
	s.Require().NoError(err)
	s.True(got.Revoked)
}

func (s *PostgresStoreSuite) TestTransactionRollback() {
	ctx := context.Background()
	c := testutil.NewCredentialBuilder().Build()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(store.NewPostgresTx(tx).Insert(ctx, c))
	s.Require().NoError(tx.Rollback())

	_, err = s.store.FindByKey(ctx, c.Key())
	s.ErrorIs(err, store.ErrNotFound)
}
