package cache

// SQL schemas for cache tables. All cache tables use "cache_key" as the
// primary key and store the expiry chosen at write time, so positive and
// negative entries can live side by side with different TTLs.

// OpenLibraryCacheSchema defines the schema for Open Library responses
const OpenLibraryCacheSchema = `
CREATE TABLE IF NOT EXISTS openlibrary_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	not_found INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_openlibrary_expires_at ON openlibrary_cache(expires_at);
`

// GoogleBooksCacheSchema defines the schema for Google Books responses
const GoogleBooksCacheSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	not_found INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_googlebooks_expires_at ON googlebooks_cache(expires_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	OpenLibraryCacheSchema,
	GoogleBooksCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	"openlibrary_cache": true,
	"googlebooks_cache": true,
}

// TableFor returns the cache table of an enrichment source.
func TableFor(source string) string {
	return source + "_cache"
}
