package viewertoken

import (
	"log/slog"
	"sync"
)

// TileURLFunc builds the URL of one tile.
type TileURLFunc func(level, x, y int) string

// Source is a loaded tile source of a viewer item.
type Source struct {
	URL            string
	TilesURL       string
	TileURLBuilder TileURLFunc

	tokenDecorated bool
}

// Item is one image opened in a viewer.
type Item struct {
	Source *Source
}

// Viewer is the part of a tile viewer the helper patches.
type Viewer interface {
	// Items returns the currently loaded items.
	Items() []*Item

	// OnOpen registers fn to run whenever new content is opened.
	OnOpen(fn func())
}

// AttachViewer patches v's loaded sources now and again every time v opens
// content. Static URLs get the current token; tile URL builders are
// decorated once so tiles requested later carry whatever token is current
// at that moment. A failure while patching never reaches the viewer.
func (h *Helper) AttachViewer(v Viewer) {
	if v == nil || !h.HasToken() {
		return
	}
	h.patchSources(v)
	v.OnOpen(func() { h.patchSources(v) })
}

func (h *Helper) patchSources(v Viewer) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Debug("tile source patching failed", slog.Any("panic", r))
		}
	}()

	for _, item := range v.Items() {
		if item == nil || item.Source == nil {
			continue
		}
		src := item.Source
		if src.URL != "" {
			src.URL = h.AppendToken(src.URL)
		}
		if src.TilesURL != "" {
			src.TilesURL = h.AppendToken(src.TilesURL)
		}
		if src.TileURLBuilder != nil && !src.tokenDecorated {
			src.TileURLBuilder = h.tokenTileURL(src.TileURLBuilder)
			src.tokenDecorated = true
		}
	}
}

// tokenTileURL decorates build so each URL it returns carries the token
// current at call time.
func (h *Helper) tokenTileURL(build TileURLFunc) TileURLFunc {
	return func(level, x, y int) string {
		return h.AppendToken(build(level, x, y))
	}
}

// World is a minimal in-process Viewer: a list of items and open handlers.
type World struct {
	mu       sync.Mutex
	items    []*Item
	handlers []func()
}

func (w *World) Items() []*Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Item(nil), w.items...)
}

func (w *World) OnOpen(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, fn)
}

// Open adds items and fires the open handlers.
func (w *World) Open(items ...*Item) {
	w.mu.Lock()
	w.items = append(w.items, items...)
	handlers := append([]func(){}, w.handlers...)
	w.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
