// Package channel provides bounded channels whose senders never block.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	// TrySend queues v and reports false when the buffer is full.
	TrySend(v T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Bounded is a buffered channel that drops instead of blocking.
type Bounded[T any] struct {
	ch chan T
}

var _ Channel[int] = (*Bounded[int])(nil)

// New creates a bounded channel holding up to size values. Sizes below 1 become 1.
func New[T any](size int) *Bounded[T] {
	if size < 1 {
		size = 1
	}
	return &Bounded[T]{ch: make(chan T, size)}
}

func (b *Bounded[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the receive-only channel
func (b *Bounded[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of items currently in the buffer
func (b *Bounded[T]) Len() int {
	return len(b.ch)
}

// Cap returns the buffer size
func (b *Bounded[T]) Cap() int {
	return cap(b.ch)
}

// Close closes the channel. TrySend must not be called afterwards.
func (b *Bounded[T]) Close() {
	close(b.ch)
}
