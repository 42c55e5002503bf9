package progress

import (
	"context"
	"fmt"
	"time"
)

type exampleCountingSink struct {
	total int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	s.total += len(batch)
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Observe demonstrates observing events and flushing via Close.
func ExampleHub_Observe() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, sink)

	hub.Observe(Processing(1, 1, "https://teams-titles.hr.ufl.edu/teams-title/example/"))
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("events forwarded: %d\n", sink.total)
	// Output:
	// events forwarded: 1
}

// ExampleCallback adapts a front-end style progress function.
func ExampleCallback() {
	obs := Callback(func(current, total int, message string) {
		fmt.Printf("%s (%d/%d)\n", message, current, total)
	})
	obs.Observe(Processing(1, 2, ""))
	obs.Observe(Processed(1, 2, "", false, 0))
	// Output:
	// Processing 1 of 2 (1/2)
	// Processed 1 of 2 (1/2)
}
