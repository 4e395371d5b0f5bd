package interfaces

// Connection is a client's event channel as seen by the dispatch core.
// Implementations serialize writes on a single goroutine.
type Connection interface {
	// ID is the server-assigned connection id, stable for the
	// connection's lifetime.
	ID() string

	// Send queues an already encoded frame without blocking. It fails
	// when the connection is closed or its send buffer is full.
	Send(frame []byte) error

	// WriteJSON encodes v and queues it, waiting briefly for buffer space.
	WriteJSON(v interface{}) error

	Close() error
}
