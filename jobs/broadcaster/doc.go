// Package broadcaster moves committed registry events from the outbox
// to Kafka. Delivery is at-least-once and ordered by sequence number.
package broadcaster
