package types

// SessionState is the read-only view of the trace session that components
// other than the lifecycle manager are allowed to see.
type SessionState interface {
	IsOpen() bool
	Path() string
}

// TimelineSink receives spans and counter samples with explicit timestamps
// on the trace clock.
type TimelineSink interface {
	Now() uint64
	SetTrackDescriptor(track uint64, name string)
	Complete(category, name string, track, start, end uint64)
	CounterAt(category, name string, ts uint64, value float64)
}
