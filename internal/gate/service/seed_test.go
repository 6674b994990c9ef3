package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/internal/gate/store"
)

func TestSeed_Applied(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	subs, err := env.store.Subsystems().ListSubsystems(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)

	carol, err := env.store.Principals().GetPrincipalByID(ctx, 44)
	require.NoError(t, err)
	require.Equal(t, "carol", carol.Name)
	require.Equal(t, []string{"editors"}, carol.Groups)

	page, err := env.store.Pages().GetPageByID(ctx, 13)
	require.NoError(t, err)
	require.Equal(t, "grouped", page.Subsystem)

	sess, err := env.store.Sessions().GetSession(ctx, "bob-sid")
	require.NoError(t, err)
	require.EqualValues(t, 43, sess.UID)
}

func TestSeed_RollsBackOnError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	seed, err := ParseSeed("bad.hcl", []byte(`
subsystem "fresh" {
}

source "abc" {
}
`))
	require.NoError(t, err)

	require.Error(t, (&SeedService{Store: env.store}).Apply(ctx, seed))

	_, err = env.store.Subsystems().GetSubsystemByName(ctx, "fresh")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadSeedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed.hcl")
	require.NoError(t, os.WriteFile(path, []byte(fixtureHCL), 0o600))

	f, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, f.Principals, 5)
	require.Len(t, f.Sessions, 5)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)

	_, err = ParseSeed("broken.hcl", []byte(`principal "x" {`))
	require.Error(t, err)
}
