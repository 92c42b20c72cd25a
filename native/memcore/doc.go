// Package memcore is an in-process native core. It keeps a profile and a
// friend list in memory and loops every outgoing action back as the events
// a peer would cause. Enqueue stands in for network input.
package memcore
