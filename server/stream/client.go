// Package stream publishes a channel of updates to web clients over websockets.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	pingResolution = time.Millisecond * 200
	// By definition, it encompasses the number of pings to tolerate losing before concluding
	// the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{
	// Progress feeds are read-only and carry no credentials.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client publishes updates unidirectionally to a web client via websocket.
type Client[T any] struct {
	updates    <-chan T
	ws         *websock
	rootCtx    context.Context
	resolution time.Duration
	pong       chan struct{}
}

// NewClient upgrades the request and returns a publisher of the updates chan. Updates arriving
// faster than the resolution are coalesced: only the latest is sent on the next publication,
// and a pending one is flushed when the updates chan closes. A zero resolution sends everything.
func NewClient[T any](
	updates <-chan T,
	resolution time.Duration,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	cli := &Client[T]{
		updates:    updates,
		ws:         newWebSocket(ws),
		rootCtx:    r.Context(),
		resolution: resolution,
		pong:       make(chan struct{}, 1),
	}
	// Set before any reader runs; the handler is invoked from within ReadMessage.
	ws.SetPongHandler(func(_ string) error {
		select {
		case cli.pong <- struct{}{}:
		default:
		}
		return nil
	})
	return cli, nil
}

var errUpdatesDone = errors.New("updates chan closed")

// Sync publishes incoming updates until the updates chan closes or the peer goes away, then
// closes the socket. Sync returns nil upon either of those, or the first unexpected error.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		if err := cli.publish(groupCtx); err != nil {
			return err
		}
		return errUpdatesDone
	})
	group.Go(func() error {
		<-groupCtx.Done()
		cli.ws.Close()
		return nil
	})

	err := group.Wait()
	if errors.Is(err, errUpdatesDone) || isClosure(err) {
		return nil
	}
	return err
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-cli.pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %v", err, err)
				}
			}
			return
		})
}

// readMessages monitors for messages from the client, which are discarded.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	var (
		lastSync time.Time
		pending  T
		dirty    bool
	)

	for update := range channerics.OrDone(ctx.Done(), cli.updates) {
		pending, dirty = update, true
		if time.Since(lastSync) < cli.resolution {
			continue
		}
		lastSync = time.Now()
		dirty = false
		if err := cli.write(ctx, pending); err != nil {
			return err
		}
	}

	if dirty && ctx.Err() == nil {
		return cli.write(ctx, pending)
	}
	return nil
}

func (cli *Client[T]) write(ctx context.Context, update T) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				writeErr = fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
				return
			}

			if writeErr = ws.WriteJSON(update); writeErr != nil {
				if isError(writeErr) {
					writeErr = fmt.Errorf("publish failed: %T %v", writeErr, writeErr)
				}
			}
			return
		})
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}
