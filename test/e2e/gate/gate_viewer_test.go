package gate_test

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/pkg/gatesdk"
	"github.com/wdb/iiifgate/pkg/viewertoken"
)

// TestViewer_RefreshKeepsTilesAuthorized drives the viewer helper against a
// live gate: tiles built before and after a refresh both pass the delegate.
func TestViewer_RefreshKeepsTilesAuthorized(t *testing.T) {
	baseURL := setupGateContainer(t, nil)
	ctx := t.Context()

	gateURL, err := url.Parse(baseURL)
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	jar.SetCookies(gateURL, []*http.Cookie{{Name: "PHPSESSID", Value: "alice-sid", Path: "/"}})

	hc := cleanhttp.DefaultClient()
	hc.Jar = jar

	ac, err := gatesdk.NewClient(baseURL).AuthContext(ctx, 10, aliceCookie)
	require.NoError(t, err)

	cfg := viewertoken.ConfigFromAuthContext(ac)
	cfg.RefreshURL = baseURL + ac.RefreshURL
	helper := viewertoken.New(cfg, viewertoken.WithHTTPClient(hc))
	t.Cleanup(helper.Stop)

	src := &viewertoken.Source{
		TileURLBuilder: func(level, x, y int) string {
			return "/iiif/3/wdb%2Fhdb%2Fdoc1%2F1.ptif/0,0,512,512/512,/0/default.jpg"
		},
	}
	world := &viewertoken.World{}
	world.Open(&viewertoken.Item{Source: src})
	helper.AttachViewer(world)

	delegate := gatesdk.NewClient(baseURL, gatesdk.WithTokenOnly(true))
	authorized := func() bool {
		rc := tileRequest(hdbImage)
		rc.RequestURI = src.TileURLBuilder(0, 0, 0)
		return delegate.PreAuthorize(ctx, rc)
	}

	require.True(t, authorized())

	first := helper.Token()
	require.True(t, helper.RefreshNow())
	require.NotEqual(t, first, helper.Token())
	require.True(t, authorized())
}
