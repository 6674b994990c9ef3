package gate_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/pkg/gatesdk"
)

// TestDecision_Paths walks each branch of the decision pipeline through the
// delegate client.
func TestDecision_Paths(t *testing.T) {
	baseURL := setupGateContainer(t, nil)
	client := gatesdk.NewClient(baseURL)
	ctx := t.Context()

	t.Run("anonymous subsystem", func(t *testing.T) {
		require.True(t, client.PreAuthorize(ctx, tileRequest(openImage)))
	})

	t.Run("info.json is exempt", func(t *testing.T) {
		rc := tileRequest("wdb/unknown/1.ptif")
		rc.RequestURI = "/iiif/3/wdb%2Funknown%2F1.ptif/info.json"
		require.True(t, client.PreAuthorize(ctx, rc))
	})

	t.Run("no credentials", func(t *testing.T) {
		resp, err := client.Decide(ctx, gatesdk.DecisionRequest{Identifier: hdbImage, ClientIP: "203.0.113.20"})
		require.NoError(t, err)
		require.False(t, resp.Authorized)
		require.Equal(t, "No session cookie found.", resp.Reason)
	})

	t.Run("session with permission", func(t *testing.T) {
		rc := tileRequest(hdbImage)
		rc.Cookies = map[string]string{"PHPSESSID": "alice-sid", "theme": "dark"}
		require.True(t, client.PreAuthorize(ctx, rc))
	})

	t.Run("session without permission", func(t *testing.T) {
		rc := tileRequest(hdbImage)
		rc.Cookies = map[string]string{"SSESS0af3": "bob-sid"}
		require.False(t, client.PreAuthorize(ctx, rc))
	})

	t.Run("unknown subsystem is 404", func(t *testing.T) {
		resp, err := client.Decide(ctx, gatesdk.DecisionRequest{Identifier: "wdb/nope/1.ptif", ClientIP: "203.0.113.20"})
		requireAPIError(t, err, http.StatusNotFound)
		require.False(t, resp.Authorized)
		require.Equal(t, "Subsystem configuration not found.", resp.Reason)
	})

	t.Run("forged token does not fall back to session", func(t *testing.T) {
		rc := tileRequest(hdbImage)
		rc.RequestURI += "?wdb_token=forged.token"
		rc.Cookies = map[string]string{"PHPSESSID": "alice-sid"}
		require.False(t, client.PreAuthorize(ctx, rc))
	})
}
