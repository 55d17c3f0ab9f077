// Package messaging publishes and consumes messages through NSQ, NATS,
// Kafka or Google Pub/Sub behind one interface.
//
// Headers are carried natively where the broker supports them. NSQ has no
// headers, so messages published to NSQ are framed in a small JSON envelope
// that the NSQ consumer unwraps again.
package messaging
