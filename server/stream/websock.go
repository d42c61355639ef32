package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	writeWait        = time.Second
	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = 250 * time.Millisecond
)

// websock serializes reads and writes to the websocket, whose requirements are that there may
// be only one concurrent reader and one concurrent writer at a time.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem   chan struct{}
	writeSem  chan struct{}
	ws        *websocket.Conn
	closeOnce sync.Once
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Close sends a close frame and closes the connection, which also unblocks a pending reader.
// Only the write side is serialized since the reader may be parked in ReadMessage.
func (sock *websock) Close() {
	sock.closeOnce.Do(func() {
		select {
		case sock.writeSem <- struct{}{}:
			_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = sock.ws.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-sock.writeSem
			time.Sleep(closeGracePeriod)
		case <-time.After(writeDeadline):
		}
		sock.ws.Close()
	})
}

// Read serializes read operations on the internal web socket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
