// Package notify publishes alert transitions to NATS.
package notify
