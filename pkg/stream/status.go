package stream

import "sync/atomic"

// Status is the stream client's coarse-grained observable state (spec §4.6).
type Status int32

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReconnecting
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "connecting"
	}
}

// statusBox is an atomically-readable status cell, safe to read from any
// goroutine (e.g. a health endpoint) while the client's own goroutine
// writes it.
type statusBox struct {
	v atomic.Int32
}

func (b *statusBox) set(s Status)  { b.v.Store(int32(s)) }
func (b *statusBox) get() Status   { return Status(b.v.Load()) }
