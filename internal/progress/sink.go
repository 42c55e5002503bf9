package progress

import "context"

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Observer receives progress notifications synchronously from the pipeline.
// Implementations must return quickly; Hub satisfies this interface without
// ever blocking.
type Observer interface {
	Observe(evt Event)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(evt Event)

// Observe calls f.
func (f ObserverFunc) Observe(evt Event) {
	if f != nil {
		f(evt)
	}
}

// Callback adapts a (current, total, message) function, the shape used by
// interactive front-ends, to Observer.
func Callback(fn func(current, total int, message string)) Observer {
	if fn == nil {
		return Nop
	}
	return ObserverFunc(func(evt Event) {
		fn(evt.Current, evt.Total, evt.Message)
	})
}

// Nop discards every event.
var Nop Observer = ObserverFunc(nil)

// Tee forwards each event to every non-nil observer in order.
func Tee(observers ...Observer) Observer {
	live := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			live = append(live, o)
		}
	}
	return tee(live)
}

type tee []Observer

func (t tee) Observe(evt Event) {
	for _, o := range t {
		o.Observe(evt)
	}
}

// WithRunID stamps runID on every event before forwarding it to next.
func WithRunID(runID string, next Observer) Observer {
	if next == nil {
		return Nop
	}
	return ObserverFunc(func(evt Event) {
		evt.RunID = runID
		next.Observe(evt)
	})
}
