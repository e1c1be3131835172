package checkpoint

import "github.com/cockroachdb/pebble/v2"

// defaultStride is the number of decompressed bytes between checkpoints,
// chosen as a compromise between checkpoint density (more checkpoints,
// faster ReadAt, more memory/disk) and rebuild cost (fewer checkpoints,
// cheaper to maintain, slower ReadAt at a cold offset).
const defaultStride = 256 * 1024

const defaultCacheSize = 256

type config struct {
	stride     int64
	cacheSize  int
	db         *pebble.DB
	zlibFramed bool
	debugName  string
}

func defaultConfig() config {
	return config{
		stride:    defaultStride,
		cacheSize: defaultCacheSize,
		debugName: "checkpoint",
	}
}

// Option configures a Store constructed by Open.
type Option func(*config)

// WithStride sets the number of decompressed bytes between checkpoints.
func WithStride(n int64) Option {
	return func(c *config) { c.stride = n }
}

// WithCacheSize sets the number of checkpoints the in-memory admission
// cache holds before evicting the least valuable one.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithPersistentStore backs the checkpoint cache with db, so checkpoints
// survive process restart. Without this option the Store is memory-only:
// its checkpoints last as long as the Store, and a new Store over the same
// object rebuilds them from the start of the stream.
func WithPersistentStore(db *pebble.DB) Option {
	return func(c *config) { c.db = db }
}

// WithZlibFraming tells Open that src begins with an RFC 1950 zlib header
// (and, if FDICT is set, a dictionary ID) before the raw DEFLATE stream,
// rather than raw DEFLATE from byte zero.
func WithZlibFraming() Option {
	return func(c *config) { c.zlibFramed = true }
}

// WithDebugName sets the prefix mixed into every checkpoint cache key, to
// keep Stores over different compressed objects from colliding in a shared
// cache or persistent store.
func WithDebugName(name string) Option {
	return func(c *config) { c.debugName = name }
}
