// Package viewertoken keeps a tile viewer's outgoing image requests carrying
// a current gate token.
//
// A Helper appends the token to tile-source URLs, decorates per-tile URL
// builders so every tile fetched later also carries it, and renews the token
// shortly before it expires. Without an initial token every method is a
// pass-through, so a viewer works unchanged when tokens are disabled.
//
//	h := viewertoken.New(viewertoken.ConfigFromAuthContext(ctx), viewertoken.WithHTTPClient(hc))
//	sources = h.NormalizeTileSources(sources)
//	h.AttachViewer(world)
//	h.StartAutoRefresh()
//	defer h.Stop()
package viewertoken
