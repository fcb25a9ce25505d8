package transport

import (
	"context"
	"sync"
)

// Loopback is an in-memory, in-process Transport pair, for tests and the
// demo binaries where no real network framing is needed. Each end reads
// the other's writes over a buffered channel.
type Loopback struct {
	out       chan Envelope
	in        chan Envelope
	closeOnce sync.Once
	closed    chan struct{}
}

// NewLoopbackPair returns two Loopback endpoints wired to each other:
// whatever one side Sends, the other side's Recv delivers.
func NewLoopbackPair(buffer int) (a, b *Loopback) {
	ab := make(chan Envelope, buffer)
	ba := make(chan Envelope, buffer)
	a = &Loopback{out: ab, in: ba, closed: make(chan struct{})}
	b = &Loopback{out: ba, in: ab, closed: make(chan struct{})}
	return a, b
}

func (l *Loopback) Send(ctx context.Context, e Envelope) error {
	select {
	case <-l.closed:
		return ErrClosed
	default:
	}
	select {
	case l.out <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return ErrClosed
	}
}

func (l *Loopback) Recv(ctx context.Context) (Envelope, error) {
	select {
	case e := <-l.in:
		return e, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-l.closed:
		return Envelope{}, ErrClosed
	}
}

func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

var _ Transport = (*Loopback)(nil)
