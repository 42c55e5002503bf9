// Package progress defines the (current, total, message) notifications the
// pipeline driver emits, the Observer interface it writes them to, and a
// non-blocking Hub that batches events and fans them out to pluggable sinks
// such as structured logs or Prometheus metrics.
package progress
