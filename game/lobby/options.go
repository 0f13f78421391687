package lobby

import (
	"sync"

	"go.uber.org/zap"
)

// Option configures a Lobby or a Registry.
type Option func(*options)

type options struct {
	log      *zap.Logger
	observer Observer
	onEmpty  func(id uint64)
	tasks    *sync.WaitGroup
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithObserver sets the observer that receives lobby events.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithOnEmpty sets the callback a lobby invokes, exactly once and outside its
// lock, when it closes. A Registry installs its own callback.
func WithOnEmpty(fn func(id uint64)) Option {
	return func(o *options) {
		o.onEmpty = fn
	}
}

func withTasks(wg *sync.WaitGroup) Option {
	return func(o *options) {
		o.tasks = wg
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
