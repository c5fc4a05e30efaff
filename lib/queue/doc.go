// Package queue provides the unbounded multi-producer single-consumer queue
// that carries receive events from the per-connection goroutines of a relay
// server to the single goroutine draining it.
//
// Features and Guarantees:
//
//   - Lock-Free pushes: producers only use atomic operations
//   - Unbounded Size: limited only by available memory
//   - Single Consumer: values are received from the Recv() channel
//   - No Strict FIFO across producers: concurrent pushes are ordered by
//     which producer completes first
//   - Close discards: values still queued when Close is called are never
//     delivered and the Recv() channel is closed
package queue
