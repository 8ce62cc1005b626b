package msgchannel

import (
	"context"
	"errors"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3/frame"
)

var errFakeClosed = errors.New("fake conn closed")

// fakeConn is an in-memory socket. The test plays the broker through
// toClient and fromClient.
type fakeConn struct {
	toClient   chan []byte
	fromClient chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	closeCode  websocket.StatusCode
	mu         sync.Mutex
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		toClient:   make(chan []byte, 32),
		fromClient: make(chan []byte, 32),
		closed:     make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case data := <-f.toClient:
		return websocket.MessageText, data, nil
	case <-f.closed:
		return 0, nil, errFakeClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, _ websocket.MessageType, p []byte) error {
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	select {
	case f.fromClient <- append([]byte(nil), p...):
		return nil
	case <-f.closed:
		return errFakeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeConn) Close(code websocket.StatusCode, _ string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeCode = code
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) send(fr *frame.Frame) {
	data, err := encode(fr)
	if err != nil {
		panic(err)
	}
	f.toClient <- data
}
