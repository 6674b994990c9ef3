package gate_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/pkg/gatesdk"
)

func TestReadyzEndpoint(t *testing.T) {
	baseURL := setupGateContainer(t, nil)

	health, err := gatesdk.NewClient(baseURL).Ready(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Secret)
}
