package domain

// Page is an annotation page whose image is served by the IIIF server.
// Subsystem is resolved through the page's source document.
type Page struct {
	ID              int64
	SourceID        int64
	Subsystem       string
	ImageIdentifier string
}
