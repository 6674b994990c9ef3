package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/internal/gate/domain"
	"github.com/wdb/iiifgate/internal/gate/session"
	"github.com/wdb/iiifgate/internal/gate/store/drivers/sqlite"
	"github.com/wdb/iiifgate/pkg/clock"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

var issuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const fixtureHCL = `
subsystem "hdb" {
  permission = "view"
}

subsystem "open" {
  allow_anonymous = true
}

subsystem "grouped" {
  group = "editors"
}

principal "alice" {
  id          = 42
  permissions = ["view"]
}

principal "bob" {
  id = 43
}

principal "carol" {
  id          = 44
  permissions = ["view wdb gallery pages"]
  groups      = ["editors"]
}

principal "dave" {
  id          = 45
  permissions = ["view wdb gallery pages"]
}

principal "mallory" {
  id          = 46
  blocked     = true
  permissions = ["view"]
}

source "1" {
  subsystem = "hdb"
}

source "2" {
  subsystem = "grouped"
}

source "3" {
}

page "10" {
  source           = 1
  image_identifier = "wdb/hdb/doc1/1.ptif"
}

page "11" {
  source           = 3
  image_identifier = "wdb/none/1.ptif"
}

page "12" {
  source = 1
}

page "13" {
  source           = 2
  image_identifier = "wdb/grouped/a.ptif"
}

page "14" {
  image_identifier = "wdb/hdb/orphan.ptif"
}

session "alice-sid" {
  data = "uid|i:42;"
}

session "bob-sid" {
  uid = 43
}

session "anon-sid" {
  data = "uid|i:0;"
}

session "carol-sid" {
  data = "_sf2_attributes|a:1:{s:3:\"uid\";s:2:\"44\";}"
}

session "dave-sid" {
  uid = 45
}
`

type testEnv struct {
	store    *sqlite.Store
	clock    *clock.FakeClock
	codec    *iiiftoken.Codec
	decision *DecisionService
	refresh  *RefreshService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	seed, err := ParseSeed("fixtures.hcl", []byte(fixtureHCL))
	require.NoError(t, err)
	require.NoError(t, (&SeedService{Store: st}).Apply(ctx, seed))

	clk := clock.Fake(issuedAt)
	codec := iiiftoken.NewCodec(iiiftoken.StaticSecret([]byte("test key material"), "test-salt"), clk)

	return &testEnv{
		store: st,
		clock: clk,
		codec: codec,
		decision: &DecisionService{
			Store:    st,
			Codec:    codec,
			Sessions: session.NewResolver(nil, st.Sessions()),
		},
		refresh: &RefreshService{
			Store: st,
			Codec: codec,
			TTL:   iiiftoken.DefaultTTL,
		},
	}
}

func (e *testEnv) issue(t *testing.T, subsystem, identifier string, principal int64) string {
	t.Helper()
	token, err := e.codec.NewIssuer(iiiftoken.DefaultTTL).Issue(subsystem, identifier, principal)
	require.NoError(t, err)
	return token
}

func (e *testEnv) principal(t *testing.T, id int64) domain.Principal {
	t.Helper()
	p, err := e.store.Principals().GetPrincipalByID(context.Background(), id)
	require.NoError(t, err)
	return p
}
