package download

// Option configures a single call to [Handle].
type Option func(*options) error

type options struct {
	progress bool
}

// WithProgress logs transfer progress through the logger given to
// Handle, at most once per second.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}
