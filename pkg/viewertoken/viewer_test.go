package viewertoken

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func tileBuilder(base string) TileURLFunc {
	return func(level, x, y int) string {
		return fmt.Sprintf("%s/%d/%d_%d.jpg", base, level, x, y)
	}
}

func TestAttachViewer(t *testing.T) {
	t.Parallel()
	h := New(Config{Token: "tok"})

	first := &Source{
		URL:            "https://x/a/info.json",
		TilesURL:       "https://x/a/tiles",
		TileURLBuilder: tileBuilder("https://x/a"),
	}
	w := &World{}
	w.Open(&Item{Source: first}, &Item{}, nil)

	h.AttachViewer(w)

	require.Equal(t, "https://x/a/info.json?wdb_token=tok", first.URL)
	require.Equal(t, "https://x/a/tiles?wdb_token=tok", first.TilesURL)
	require.Equal(t, "https://x/a/3/1_2.jpg?wdb_token=tok", first.TileURLBuilder(3, 1, 2))
	require.True(t, first.tokenDecorated)

	t.Run("opening more content patches new items", func(t *testing.T) {
		second := &Source{TileURLBuilder: tileBuilder("https://x/b")}
		w.Open(&Item{Source: second})

		require.True(t, second.tokenDecorated)
		require.Equal(t, "https://x/b/0/0_0.jpg?wdb_token=tok", second.TileURLBuilder(0, 0, 0))

		require.Equal(t, "https://x/a/info.json?wdb_token=tok", first.URL)
		require.Equal(t, 1, strings.Count(first.TileURLBuilder(1, 1, 1), "wdb_token="))
	})

	t.Run("decorated builders follow the current token", func(t *testing.T) {
		h.mu.Lock()
		h.setToken("fresh", "")
		h.mu.Unlock()

		require.Equal(t, "https://x/a/1/0_0.jpg?wdb_token=fresh", first.TileURLBuilder(1, 0, 0))
	})
}

type brokenViewer struct {
	handlers []func()
}

func (*brokenViewer) Items() []*Item { panic("world not ready") }

func (v *brokenViewer) OnOpen(fn func()) { v.handlers = append(v.handlers, fn) }

func TestAttachViewer_PatchFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	h := New(Config{Token: "tok"})
	v := &brokenViewer{}

	require.NotPanics(t, func() { h.AttachViewer(v) })
	require.Len(t, v.handlers, 1)
	require.NotPanics(t, v.handlers[0])
}
