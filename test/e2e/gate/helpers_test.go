package gate_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wdb/iiifgate/pkg/clock"
	"github.com/wdb/iiifgate/pkg/gatesdk"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

/*
 * Container setup and shared fixtures for the gate end-to-end tests.
 */

const (
	testImageName = "iiifgate-test:latest"

	privateKey = "e2e-private-key-material"
	hashSalt   = "e2e-salt"
	seedPath   = "/etc/iiifgate/seed.hcl"

	hdbImage  = "wdb/hdb/doc1/1.ptif"
	openImage = "wdb/open/doc2/1.ptif"

	aliceCookie = "PHPSESSID=alice-sid"
	bobCookie   = "PHPSESSID=bob-sid"
)

const seedHCL = `
subsystem "hdb" {
  permission = "view"
}

subsystem "open" {
  allow_anonymous = true
}

principal "alice" {
  id          = 42
  permissions = ["view"]
}

principal "bob" {
  id = 43
}

source "1" {
  subsystem = "hdb"
}

page "10" {
  source           = 1
  image_identifier = "wdb/hdb/doc1/1.ptif"
}

page "11" {
  source = 1
}

session "alice-sid" {
  data = "uid|i:42;"
}

session "bob-sid" {
  uid = 43
}
`

// TestMain builds the gate image once for the whole package.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building gate Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up gate Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	_ = exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName).Run()
}

// relaxedLimits keeps tests that fire many requests clear of the limiter.
var relaxedLimits = map[string]string{
	"RATELIMIT_DECISION_REQUESTS": "100000",
	"RATELIMIT_DECISION_BURST":    "100000",
	"RATELIMIT_REFRESH_REQUESTS":  "1000",
	"RATELIMIT_REFRESH_BURST":     "1000",
}

// setupGateContainer starts the gate with the shared seed and returns its
// base URL. extraEnv overrides the defaults.
func setupGateContainer(t *testing.T, extraEnv map[string]string) string {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"GATE_PRIVATE_KEY": privateKey,
		"GATE_HASH_SALT":   hashSalt,
		"GATE_SEED_FILE":   seedPath,
		"GATE_TOKEN_TTL":   "600",
		"ENV":              "test",
		"LOG_LEVEL":        "info",
		"LOG_FORMAT":       "json",
	}
	maps.Copy(env, relaxedLimits)
	maps.Copy(env, extraEnv)

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		Files: []testcontainers.ContainerFile{{
			Reader:            strings.NewReader(seedHCL),
			ContainerFilePath: seedPath,
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForHTTP("/readyz").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// localCodec verifies tokens with the key material handed to the container.
func localCodec() *iiiftoken.Codec {
	return iiiftoken.NewCodec(iiiftoken.StaticSecret([]byte(privateKey), hashSalt), clock.Real())
}

// tileRequest is what the image server sees for one tile of identifier.
func tileRequest(identifier string) gatesdk.RequestContext {
	return gatesdk.RequestContext{
		Identifier: identifier,
		RequestURI: "/iiif/3/" + strings.ReplaceAll(identifier, "/", "%2F") + "/0,0,512,512/512,/0/default.jpg",
		ClientIP:   "203.0.113.20",
	}
}

// requireAPIError asserts err is an *APIError with the given status.
func requireAPIError(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *gatesdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode)
}
