package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tassianasc/blablachat/internal/store"
)

const (
	writeWait      = 10 * time.Second
	requestTimeout = 10 * time.Second
	sendBuffer     = 256
)

// Hub owns the node tree engine and the set of connected clients. Each client
// carries its own subscriptions and last-will writes; when the socket goes
// away, for any reason, the last-wills are applied before the client is
// forgotten.
type Hub struct {
	engine  *store.MemoryStore
	persist *Persistence
	log     *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once

	mu        sync.Mutex
	nextSubID int64
	subs      map[int64]store.Subscription
	lastWills []lastWill
	sendOff   bool
}

type lastWill struct {
	path string
	raw  json.RawMessage
}

// NewHub builds a hub around an engine. persist may be nil for a purely
// in-memory daemon.
func NewHub(engine *store.MemoryStore, persist *Persistence, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		engine:  engine,
		persist: persist,
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// Restore loads the persisted tree into the engine. Called once at startup,
// before any client connects.
func (h *Hub) Restore(ctx context.Context) error {
	if h.persist == nil {
		return nil
	}
	leaves, err := h.persist.LoadLeaves()
	if err != nil {
		return err
	}
	for path, raw := range leaves {
		if err := h.engine.Write(ctx, path, raw); err != nil {
			return err
		}
	}
	h.log.Info("restored node tree", "leaves", len(leaves))
	return nil
}

// Attach takes ownership of an upgraded websocket connection.
func (h *Hub) Attach(conn *websocket.Conn) {
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		subs: make(map[int64]store.Subscription),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("client connected", "remote", conn.RemoteAddr())

	go c.writePump()
	go c.readPump()
}

// detach runs the client's last-will writes, cancels its subscriptions and
// removes it from the hub. Safe to call more than once.
func (h *Hub) detach(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()

		c.mu.Lock()
		subs := c.subs
		wills := c.lastWills
		c.subs = nil
		c.lastWills = nil
		c.sendOff = true
		close(c.send)
		c.mu.Unlock()

		for _, sub := range subs {
			sub.Cancel()
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		for _, w := range wills {
			if err := h.applyWrite(ctx, w.path, w.raw); err != nil {
				h.log.Error("last-will write failed", "path", w.path, "error", err)
			}
		}
		h.log.Info("client disconnected", "remote", c.conn.RemoteAddr(), "lastWills", len(wills))
	})
}

// applyWrite mutates the engine and mirrors the result to disk.
func (h *Hub) applyWrite(ctx context.Context, path string, raw json.RawMessage) error {
	if err := h.engine.Write(ctx, path, raw); err != nil {
		return err
	}
	if h.persist != nil {
		if err := h.persist.DeleteSubtree(path); err != nil {
			return err
		}
		if len(raw) > 0 {
			return h.persist.SaveLeaf(path, raw)
		}
	}
	return nil
}

func (h *Hub) applyUpdate(ctx context.Context, path string, fields map[string]json.RawMessage) error {
	anyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		anyFields[k] = v
	}
	if err := h.engine.Update(ctx, path, anyFields); err != nil {
		return err
	}
	if h.persist != nil {
		snap, err := h.engine.ReadOnce(ctx, path)
		if err != nil {
			return err
		}
		return h.persist.SaveLeaf(path, snap.Raw())
	}
	return nil
}

func (h *Hub) applyAppend(ctx context.Context, path string, raw json.RawMessage) (string, error) {
	id, err := h.engine.Append(ctx, path, raw)
	if err != nil {
		return "", err
	}
	if h.persist != nil {
		if err := h.persist.SaveLeaf(path+"/"+id, raw); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (c *client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("read error", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}
		var req store.Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.hub.log.Warn("bad frame", "remote", c.conn.RemoteAddr(), "error", err)
			continue
		}
		c.reply(c.handle(req))
	}
}

func (c *client) handle(req store.Request) store.Response {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp := store.Response{Seq: req.Seq}

	switch req.Op {
	case store.OpReadOnce:
		snap, err := c.hub.engine.ReadOnce(ctx, req.Path)
		if err != nil {
			return respError(resp, err)
		}
		resp.OK = true
		resp.Snapshot = snap.Raw()

	case store.OpSubscribe:
		id, err := c.subscribe(req.Path)
		if err != nil {
			return respError(resp, err)
		}
		resp.OK = true
		resp.Sub = id

	case store.OpUnsubscribe:
		c.mu.Lock()
		sub, ok := c.subs[req.Sub]
		if ok {
			delete(c.subs, req.Sub)
		}
		c.mu.Unlock()
		if ok {
			sub.Cancel()
		}
		resp.OK = true

	case store.OpWrite:
		if err := c.hub.applyWrite(ctx, req.Path, req.Value); err != nil {
			return respError(resp, err)
		}
		resp.OK = true

	case store.OpUpdate:
		if err := c.hub.applyUpdate(ctx, req.Path, req.Fields); err != nil {
			return respError(resp, err)
		}
		resp.OK = true

	case store.OpAppend:
		id, err := c.hub.applyAppend(ctx, req.Path, req.Value)
		if err != nil {
			return respError(resp, err)
		}
		resp.OK = true
		resp.ID = id

	case store.OpOnDisconnect:
		if _, err := json.Marshal(req.Value); err != nil {
			return respError(resp, err)
		}
		c.mu.Lock()
		c.lastWills = append(c.lastWills, lastWill{path: req.Path, raw: req.Value})
		c.mu.Unlock()
		resp.OK = true

	default:
		resp.Error = "unknown op: " + req.Op
	}
	return resp
}

// subscribe wires an engine subscription to this client's socket.
func (c *client) subscribe(path string) (int64, error) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.mu.Unlock()

	sub, err := c.hub.engine.Subscribe(path, func(snap store.Snapshot) {
		frame, err := json.Marshal(store.Response{
			Op:       store.OpSnapshot,
			Sub:      id,
			Path:     path,
			Snapshot: snap.Raw(),
		})
		if err != nil {
			return
		}
		c.enqueue(frame)
	})
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if c.subs == nil {
		// Client detached while we were subscribing.
		c.mu.Unlock()
		sub.Cancel()
		return 0, store.ErrClosed
	}
	c.subs[id] = sub
	c.mu.Unlock()
	return id, nil
}

func (c *client) reply(resp store.Response) {
	frame, err := json.Marshal(resp)
	if err != nil {
		c.hub.log.Error("marshal response", "error", err)
		return
	}
	c.enqueue(frame)
}

// enqueue hands a frame to the write pump. A client that cannot keep up is
// dropped rather than allowed to block the hub.
func (c *client) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendOff {
		return
	}
	select {
	case c.send <- frame:
	default:
		c.hub.log.Warn("send buffer full, dropping client", "remote", c.conn.RemoteAddr())
		c.conn.Close()
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

func respError(resp store.Response, err error) store.Response {
	resp.Error = err.Error()
	return resp
}
