// Package bridge implements the event bridge between agent execution and
// observers.
//
// Every subscriber owns a bounded FIFO queue. Publish fans an event out to all
// queues in a single pass, so events from one producer are seen by every
// subscriber in publication order. When a queue is full:
//
//   - a TokenChunk replaces the oldest unconsumed TokenChunk of the same agent
//     and run, or is itself dropped if there is none; the producer never waits
//   - any other event waits for space (backpressure) and is never dropped
//
// Close stops accepting events, lets subscribers drain what is already queued
// and waits for observer pumps to finish.
package bridge
