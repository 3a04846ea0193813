package container

// Limits bound the resources spent on a single archive. A zero or negative
// value disables the corresponding check.
type Limits struct {
	MaxArchiveBytes int64 `json:"max_archive_bytes"`
	MaxEntries      int   `json:"max_entries"`
	MaxEntryBytes   int64 `json:"max_entry_bytes"`
}

// DefaultLimits returns the limits applied when no option overrides them.
func DefaultLimits() Limits {
	return Limits{
		MaxArchiveBytes: 16 << 20,
		MaxEntries:      512,
		MaxEntryBytes:   8 << 20,
	}
}

// Option configures Read, ReadAt and Open.
type Option func(*options)

type options struct {
	limits Limits
}

func newOptions(opts []Option) *options {
	o := &options{limits: DefaultLimits()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLimits replaces all limits.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithMaxArchiveBytes bounds the size of the archive itself.
func WithMaxArchiveBytes(n int64) Option {
	return func(o *options) {
		o.limits.MaxArchiveBytes = n
	}
}

// WithMaxEntries bounds the number of entries in the archive.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.limits.MaxEntries = n
	}
}

// WithMaxEntryBytes bounds the uncompressed size of any single entry.
func WithMaxEntryBytes(n int64) Option {
	return func(o *options) {
		o.limits.MaxEntryBytes = n
	}
}
