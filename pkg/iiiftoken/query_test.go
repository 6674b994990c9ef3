package iiiftoken_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

func TestParamName(t *testing.T) {
	require.Equal(t, "wdb_token", iiiftoken.ParamName(""))
	require.Equal(t, "wdb_token", iiiftoken.ParamName("   "))
	require.Equal(t, "t", iiiftoken.ParamName(" t "))
}

func TestAppendToQuery(t *testing.T) {
	t.Run("adds parameter", func(t *testing.T) {
		got := iiiftoken.AppendToQuery("https://iiif.example.org/iiif/3/x/info.json", "", "abc")
		require.Equal(t, "https://iiif.example.org/iiif/3/x/info.json?wdb_token=abc", got)
	})

	t.Run("replaces existing value", func(t *testing.T) {
		got := iiiftoken.AppendToQuery("https://h/tile?wdb_token=old&x=1", "wdb_token", "new")

		u, err := url.Parse(got)
		require.NoError(t, err)
		require.Equal(t, []string{"new"}, u.Query()["wdb_token"])
		require.Equal(t, "1", u.Query().Get("x"))
	})

	t.Run("keeps fragment and host", func(t *testing.T) {
		got := iiiftoken.AppendToQuery("https://h:8182/tile?x=1#frag", "wdb_token", "abc")
		require.True(t, strings.HasPrefix(got, "https://h:8182/tile?"))
		require.True(t, strings.HasSuffix(got, "#frag"))
		require.Equal(t, 1, strings.Count(got, "wdb_token=abc"))
	})

	t.Run("idempotent", func(t *testing.T) {
		once := iiiftoken.AppendToQuery("https://h/tile?x=1#frag", "wdb_token", "abc")
		twice := iiiftoken.AppendToQuery(once, "wdb_token", "abc")
		require.Equal(t, once, twice)
	})

	t.Run("empty inputs are unchanged", func(t *testing.T) {
		require.Equal(t, "", iiiftoken.AppendToQuery("", "wdb_token", "abc"))
		require.Equal(t, "https://h/tile", iiiftoken.AppendToQuery("https://h/tile", "wdb_token", ""))
	})

	t.Run("unparseable URL is unchanged", func(t *testing.T) {
		raw := "http://[::1"
		require.Equal(t, raw, iiiftoken.AppendToQuery(raw, "wdb_token", "abc"))
	})
}
