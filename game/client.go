package game

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	clientSendBuffer = 64
	clientPingPeriod = 30 * time.Second
)

// Client is one live websocket connection with its attached identity.
// The connection's read goroutine is the only writer to Profile, so
// profile fields need no locking; roomCode is guarded by the hub.
type Client struct {
	SocketID  string
	AccountID string // empty for guests
	Profile   Profile

	roomCode string // hub.mu

	// ctx spans the connection, not the upgrade request: net/http
	// cancels the request context the moment the handler returns, which
	// is long before the last command arrives. Collaborator calls made
	// on behalf of this connection run under ctx.
	ctx    context.Context
	cancel context.CancelFunc

	session   NetworkSession
	send      chan []byte
	closeOnce sync.Once
	limiter   *rate.Limiter
}

func NewClient(socketID, accountID string, session NetworkSession) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		SocketID:  socketID,
		AccountID: accountID,
		Profile:   Profile{AccountID: accountID},
		ctx:       ctx,
		cancel:    cancel,
		session:   session,
		send:      make(chan []byte, clientSendBuffer),
		// a command a second with small bursts is plenty for humans
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// enqueue never blocks; a full buffer drops the message. The next
// broadcast carries a complete snapshot anyway.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		c.session.Close(reason)
	})
}

// WritePump drains the send buffer and keeps the connection alive with
// pings. Runs as its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(clientPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.send:
			if err := c.session.Write(data); err != nil {
				c.close("write failed")
				return
			}
		case <-ticker.C:
			if err := c.session.Ping(); err != nil {
				c.close("ping failed")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
