package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"thewire/internal/actor"
	"thewire/internal/model"
)

const (
	pingSweepInterval = 30 * time.Second
	staleConnAge       = 60 * time.Second
	sendBufferSize     = 64
	writeTimeout       = 5 * time.Second
)

// wsConnection is one live full-duplex connection, identified by a
// per-connection id. lastPingNano is the only field mutated outside the
// owning ConnCoord actor (the read pump updates it on every ping), so it is
// kept atomic.
type wsConnection struct {
	id           string
	userID       int64
	ws           *websocket.Conn
	send         chan []byte
	connectedAt  time.Time
	lastPingNano atomic.Int64
	closeOnce    sync.Once
}

func (c *wsConnection) touchPing() {
	c.lastPingNano.Store(time.Now().UnixNano())
}

func (c *wsConnection) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastPingNano.Load()))
}

type connState struct {
	conns map[string]*wsConnection
}

// ConnCoord is the single-writer owner of one user's live connections. Unlike
// UserCoord/PostCoord, its state is in-memory only (connections are runtime
// objects, not KV-serializable) — the actor.Registry still gives every user's
// connection set a single owning goroutine, so adds/removes/broadcasts never
// race each other.
type ConnCoord struct {
	registry *actor.Registry
	states   sync.Map // int64 -> *connState

	sweepStop chan struct{}
}

// NewConnCoord builds a ConnCoord and starts its periodic stale-connection
// sweep (every 30s, per spec §4.5).
func NewConnCoord() *ConnCoord {
	c := &ConnCoord{
		registry:  actor.NewRegistry(0),
		sweepStop: make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *ConnCoord) key(userID int64) string { return fmt.Sprintf("%d", userID) }

func (c *ConnCoord) stateFor(userID int64) *connState {
	v, _ := c.states.LoadOrStore(userID, &connState{conns: make(map[string]*wsConnection)})
	return v.(*connState)
}

// frame mirrors the WebSocket JSON text-frame shapes from spec §6.
type frame struct {
	Type          string                  `json:"type"`
	ConnectionID  string                  `json:"connectionId,omitempty"`
	Timestamp     int64                   `json:"timestamp"`
	Post          *model.Post             `json:"post,omitempty"`
	Notification  *model.Notification     `json:"notification,omitempty"`
}

func writeFrame(ws *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Connect accepts an already-upgraded websocket connection, records it, emits
// {"type":"connected"}, and spawns its read/write pumps.
func (c *ConnCoord) Connect(ctx context.Context, userID int64, ws *websocket.Conn) (string, error) {
	connID := uuid.New().String()
	_, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		conn := &wsConnection{
			id:          connID,
			userID:      userID,
			ws:          ws,
			send:        make(chan []byte, sendBufferSize),
			connectedAt: time.Now(),
		}
		conn.touchPing()
		c.stateFor(userID).conns[connID] = conn

		if err := writeFrame(ws, frame{Type: "connected", ConnectionID: connID, Timestamp: time.Now().Unix()}); err != nil {
			log.Printf("[ConnCoord] user=%d conn=%d write connected frame failed: %v", userID, connID, err)
		}

		go c.writePump(conn)
		go c.readPump(userID, conn)
		return nil, nil
	})
	return connID, err
}

func (c *ConnCoord) writePump(conn *wsConnection) {
	for msg := range conn.send {
		conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.disconnect(conn.userID, conn.id)
			return
		}
	}
}

func (c *ConnCoord) readPump(userID int64, conn *wsConnection) {
	defer c.disconnect(userID, conn.id)
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var incoming struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &incoming); err != nil {
			continue
		}
		if incoming.Type == "ping" {
			conn.touchPing()
			pong := frame{Type: "pong", Timestamp: time.Now().Unix()}
			raw, _ := json.Marshal(pong)
			select {
			case conn.send <- raw:
			default:
			}
		}
	}
}

func (c *ConnCoord) disconnect(userID int64, connID string) {
	_, _ = c.registry.Do(context.Background(), c.key(userID), func(ctx context.Context) (interface{}, error) {
		state := c.stateFor(userID)
		conn, ok := state.conns[connID]
		if !ok {
			return nil, nil
		}
		delete(state.conns, connID)
		conn.closeOnce.Do(func() {
			close(conn.send)
			conn.ws.Close()
		})
		return nil, nil
	})
}

// BroadcastPost sends {"type":"new_post", post, timestamp} to every live
// connection for userID. Send failure removes the failing connection.
func (c *ConnCoord) BroadcastPost(ctx context.Context, userID int64, post *model.Post) {
	c.broadcast(ctx, userID, frame{Type: "new_post", Post: post, Timestamp: time.Now().Unix()})
}

// BroadcastNotification sends {"type":"notification", notification, timestamp}.
func (c *ConnCoord) BroadcastNotification(ctx context.Context, userID int64, n *model.Notification) {
	c.broadcast(ctx, userID, frame{Type: "notification", Notification: n, Timestamp: time.Now().Unix()})
}

func (c *ConnCoord) broadcast(ctx context.Context, userID int64, f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	_, _ = c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		state := c.stateFor(userID)
		for id, conn := range state.conns {
			select {
			case conn.send <- data:
			default:
				// Buffer full on a best-effort broadcast: drop the
				// connection rather than block the actor.
				delete(state.conns, id)
				conn.closeOnce.Do(func() {
					close(conn.send)
					conn.ws.Close()
				})
			}
		}
		return nil, nil
	})
}

func (c *ConnCoord) sweepLoop() {
	ticker := time.NewTicker(pingSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

// sweepOnce scans every user's connection set for staleness. The scan itself
// runs inside that user's actor (registry.Do) so it never iterates conns
// concurrently with Connect/disconnect/broadcast; only the resulting
// disconnects are issued as separate, sequential Do calls afterward.
func (c *ConnCoord) sweepOnce() {
	now := time.Now()
	c.states.Range(func(key, value interface{}) bool {
		userID := key.(int64)
		result, err := c.registry.Do(context.Background(), c.key(userID), func(ctx context.Context) (interface{}, error) {
			state := c.stateFor(userID)
			var stale []string
			for id, conn := range state.conns {
				if conn.idleFor(now) > staleConnAge {
					stale = append(stale, id)
				}
			}
			return stale, nil
		})
		if err != nil {
			return true
		}
		for _, id := range result.([]string) {
			c.disconnect(userID, id)
		}
		return true
	})
}

// Stop halts the sweep loop; used on graceful shutdown.
func (c *ConnCoord) Stop() {
	close(c.sweepStop)
}

// ConnectionCount reports how many live connections userID currently has,
// mostly for tests and diagnostics. The read is routed through the user's
// actor so it never races Connect/disconnect/broadcast's map mutations.
func (c *ConnCoord) ConnectionCount(userID int64) int {
	if _, ok := c.states.Load(userID); !ok {
		return 0
	}
	n, err := c.registry.Do(context.Background(), c.key(userID), func(ctx context.Context) (interface{}, error) {
		return len(c.stateFor(userID).conns), nil
	})
	if err != nil {
		return 0
	}
	return n.(int)
}
