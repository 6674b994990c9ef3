package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wdb/iiifgate/internal/gate/session"
)

// startRedis runs a throwaway Redis container. The test is skipped when
// Docker is not available.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisReader(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, session.DefaultRedisPrefix+"abc", `uid|i:42;`, 0).Err())

	reader := session.NewRedisReader(client, "")

	blob, err := reader.Read(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, []byte(`uid|i:42;`), blob)

	blob, err = reader.Read(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, blob)

	id, ok := session.NewResolver(reader, nil).Resolve(ctx, "abc")
	require.True(t, ok)
	require.EqualValues(t, 42, id)
}
