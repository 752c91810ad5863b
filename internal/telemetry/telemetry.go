// Package telemetry streams lambda-search progress to a single websocket
// peer, so a long-running compute can be driven off the caller's own
// thread. It uses a throttled-publish-plus-ping/pong liveness pattern: a
// single concrete Event type, one caller watching one compute at a time.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = time.Second
	pingResolution = 200 * time.Millisecond
	pongWait       = pingResolution * 4
	pubResolution  = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{}

// ErrPongDeadlineExceeded signals the peer stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("progress client disconnect, pong deadline exceeded")

// Event is one lambda-search progress snapshot.
type Event struct {
	Iteration int     `json:"iteration"`
	Phase     string  `json:"phase"`
	Lambda    float64 `json:"lambda"`
	RootValue float64 `json:"rootValue"`
}

// Client streams Events to one websocket peer.
type Client struct {
	events <-chan Event
	conn   *websocket.Conn
	ctx    context.Context
}

// Upgrade promotes an HTTP request to a websocket connection bound to events.
func Upgrade(w http.ResponseWriter, r *http.Request, events <-chan Event) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Client{events: events, conn: conn, ctx: r.Context()}, nil
}

// Sync runs the publish, ping/pong, and read loops and returns once all
// three have stopped. A closed events channel stops only the publish loop,
// and a missed pong or a cancelled request context stops the other loops but
// not the read loop, which ends only when a read fails (normally when the
// peer disconnects); Sync does not return before that.
func (c *Client) Sync() error {
	group, ctx := errgroup.WithContext(c.ctx)
	group.Go(func() error { return c.readLoop(ctx) })
	group.Go(func() error { return c.pingPong(ctx) })
	group.Go(func() error { return c.publish(ctx) })
	return group.Wait()
}

// readLoop does nothing with client messages but must keep reading so
// gorilla/websocket invokes the pong handler: the read loop must run for
// SetPongHandler callbacks to fire.
func (c *Client) readLoop(ctx context.Context) error {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (c *Client) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	c.conn.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

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
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

// publish forwards events at most once per pubResolution, dropping
// intervening ones since each Event is an idempotent latest-state snapshot.
func (c *Client) publish(ctx context.Context) error {
	lastSync := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.events:
			if !ok {
				return nil
			}
			if time.Since(lastSync) < pubResolution {
				continue
			}
			lastSync = time.Now()
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return err
			}
		}
	}
}
