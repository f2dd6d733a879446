package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const cancelTimeout = 5 * time.Second

// RemoteStore is a Store backed by a blablachatd daemon over a websocket.
// Requests are matched to responses by sequence number; snapshot frames are
// handed to a dispatcher goroutine so a handler may call back into the store.
type RemoteStore struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex // serializes frames onto the socket

	mu      sync.Mutex
	cond    *sync.Cond
	seq     int64
	pending map[int64]chan Response
	subs    map[int64]*remoteSub
	orphans map[int64][]Snapshot
	queue   []remoteNotify
	closed  bool
	readErr error
}

type remoteSub struct {
	id    int64
	fn    SnapshotFunc
	store *RemoteStore
}

type remoteNotify struct {
	sub  *remoteSub
	snap Snapshot
}

// Dial connects to the daemon's websocket endpoint, e.g.
// "ws://localhost:8080/ws".
func Dial(ctx context.Context, url string, log *slog.Logger) (*RemoteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("store: dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	r := &RemoteStore{
		conn:    conn,
		log:     log,
		pending: make(map[int64]chan Response),
		subs:    make(map[int64]*remoteSub),
		orphans: make(map[int64][]Snapshot),
	}
	r.cond = sync.NewCond(&r.mu)
	go r.readLoop()
	go r.dispatch()
	return r, nil
}

func (r *RemoteStore) ReadOnce(ctx context.Context, path string) (Snapshot, error) {
	resp, err := r.roundTrip(ctx, Request{Op: OpReadOnce, Path: path})
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(resp.Snapshot), nil
}

func (r *RemoteStore) Subscribe(path string, fn SnapshotFunc) (Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	resp, err := r.roundTrip(ctx, Request{Op: OpSubscribe, Path: path})
	if err != nil {
		return nil, err
	}
	sub := &remoteSub{id: resp.Sub, fn: fn, store: r}
	r.mu.Lock()
	r.subs[sub.id] = sub
	// Snapshot frames can outrun the subscribe response; adopt any that
	// arrived before the handler was registered.
	for _, snap := range r.orphans[sub.id] {
		r.queue = append(r.queue, remoteNotify{sub: sub, snap: snap})
	}
	delete(r.orphans, sub.id)
	r.cond.Signal()
	r.mu.Unlock()
	return sub, nil
}

func (r *RemoteStore) Write(ctx context.Context, path string, value any) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	_, err = r.roundTrip(ctx, Request{Op: OpWrite, Path: path, Value: raw})
	return err
}

func (r *RemoteStore) Update(ctx context.Context, path string, fields map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw, err := marshalValue(v)
		if err != nil {
			return err
		}
		encoded[k] = raw
	}
	_, err := r.roundTrip(ctx, Request{Op: OpUpdate, Path: path, Fields: encoded})
	return err
}

func (r *RemoteStore) Append(ctx context.Context, path string, value any) (string, error) {
	raw, err := marshalValue(value)
	if err != nil {
		return "", err
	}
	resp, err := r.roundTrip(ctx, Request{Op: OpAppend, Path: path, Value: raw})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (r *RemoteStore) OnDisconnectWrite(path string, value any) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	_, err = r.roundTrip(ctx, Request{Op: OpOnDisconnect, Path: path, Value: raw})
	return err
}

// Close tears the connection down cleanly. The server runs any registered
// last-will writes when the socket goes away, clean or not.
func (r *RemoteStore) Close() error {
	r.writeMu.Lock()
	_ = r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.writeMu.Unlock()
	err := r.conn.Close()
	r.fail(ErrClosed)
	return err
}

func (s *remoteSub) Cancel() {
	s.store.mu.Lock()
	delete(s.store.subs, s.id)
	delete(s.store.orphans, s.id)
	s.store.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if _, err := s.store.roundTrip(ctx, Request{Op: OpUnsubscribe, Sub: s.id}); err != nil &&
		!errors.Is(err, ErrClosed) {
		s.store.log.Warn("unsubscribe failed", "sub", s.id, "error", err)
	}
}

func (r *RemoteStore) roundTrip(ctx context.Context, req Request) (Response, error) {
	ch := make(chan Response, 1)
	r.mu.Lock()
	if r.closed {
		err := r.readErr
		r.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		return Response{}, err
	}
	r.seq++
	req.Seq = r.seq
	r.pending[req.Seq] = ch
	r.mu.Unlock()

	r.writeMu.Lock()
	err := r.conn.WriteJSON(req)
	r.writeMu.Unlock()
	if err != nil {
		r.mu.Lock()
		delete(r.pending, req.Seq)
		r.mu.Unlock()
		return Response{}, fmt.Errorf("store: send %s: %w", req.Op, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrClosed
		}
		if !resp.OK {
			return Response{}, fmt.Errorf("store: %s %s: %s", req.Op, req.Path, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.pending, req.Seq)
		r.mu.Unlock()
		return Response{}, ctx.Err()
	}
}

func (r *RemoteStore) readLoop() {
	for {
		var resp Response
		if err := r.conn.ReadJSON(&resp); err != nil {
			r.fail(fmt.Errorf("store: connection lost: %w", err))
			return
		}
		if resp.Op == OpSnapshot {
			r.mu.Lock()
			if sub, ok := r.subs[resp.Sub]; ok {
				r.queue = append(r.queue, remoteNotify{sub: sub, snap: NewSnapshot(resp.Snapshot)})
				r.cond.Signal()
			} else {
				r.orphans[resp.Sub] = append(r.orphans[resp.Sub], NewSnapshot(resp.Snapshot))
			}
			r.mu.Unlock()
			continue
		}
		r.mu.Lock()
		ch, ok := r.pending[resp.Seq]
		if ok {
			delete(r.pending, resp.Seq)
		}
		r.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// dispatch runs snapshot handlers off the read loop, in arrival order.
func (r *RemoteStore) dispatch() {
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 && r.closed {
			r.mu.Unlock()
			return
		}
		n := r.queue[0]
		r.queue = r.queue[1:]
		_, active := r.subs[n.sub.id]
		r.mu.Unlock()
		if active {
			n.sub.fn(n.snap)
		}
	}
}

// fail marks the store closed and releases every waiter.
func (r *RemoteStore) fail(err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.readErr = err
	for seq, ch := range r.pending {
		close(ch)
		delete(r.pending, seq)
	}
	r.cond.Broadcast()
	r.mu.Unlock()
}

var _ Store = (*RemoteStore)(nil)
