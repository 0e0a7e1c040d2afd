package api

// Cache-Control header values.
const (
	// Catalog cards change only with a game patch.
	CacheOneDay = "public, max-age=86400"
)

// HeaderUserID carries the caller's identity. Authentication happens upstream.
const HeaderUserID = "X-User-ID"
