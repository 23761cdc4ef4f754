package software

// options configures a Device.
type options struct {
	workers int
}

func defaultOptions() options {
	return options{workers: 0}
}

// Option configures a Device.
type Option func(*options)

// WithWorkers sets the number of goroutines executing dispatches.
// Zero or a negative value uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
