// Package bus provides the in-process event bus that carries coordinator
// and pipeline events to observers such as the trace recorder.
//
// # Overview
//
// Publishers run inside simulation processes and must never block, so
// delivery is best-effort: a subscriber whose buffer is full loses the
// message and the bus counts the drop. Subscribers consume from plain Go
// channels on their own goroutines.
//
// # Subjects
//
// Subjects are dot-separated tokens. Subscriptions may use wildcards:
//
//   - "*" matches exactly one token ("objection.*" matches "objection.raised")
//   - ">" matches one or more trailing tokens ("pipeline.>" matches
//     "pipeline.stimulus.sample")
//
// # Usage
//
//	b := bus.NewMemoryBus(bus.DefaultConfig())
//	sub, _ := b.Subscribe("objection.>")
//	go func() {
//	    for msg := range sub.Messages() {
//	        // Handle message
//	    }
//	}()
//	b.Publish("objection.raised", data)
package bus
