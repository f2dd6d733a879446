package store

import "encoding/json"

// Wire protocol between RemoteStore and the blablachatd hub. Every client
// request carries a sequence number echoed in the response; snapshot
// notifications are unsolicited and carry the subscription id instead.

// Frame operations.
const (
	OpReadOnce     = "read_once"
	OpSubscribe    = "subscribe"
	OpUnsubscribe  = "unsubscribe"
	OpWrite        = "write"
	OpUpdate       = "update"
	OpAppend       = "append"
	OpOnDisconnect = "on_disconnect"
	OpSnapshot     = "snapshot"
)

// Request is a client -> server frame.
type Request struct {
	Seq    int64                      `json:"seq"`
	Op     string                     `json:"op"`
	Path   string                     `json:"path,omitempty"`
	Value  json.RawMessage            `json:"value,omitempty"`
	Fields map[string]json.RawMessage `json:"fields,omitempty"`
	Sub    int64                      `json:"sub,omitempty"`
}

// Response is a server -> client frame. A response answers the request with
// the same Seq; a snapshot notification has Seq zero and Op "snapshot".
type Response struct {
	Seq      int64           `json:"seq,omitempty"`
	Op       string          `json:"op,omitempty"`
	OK       bool            `json:"ok,omitempty"`
	Error    string          `json:"error,omitempty"`
	ID       string          `json:"id,omitempty"`
	Sub      int64           `json:"sub,omitempty"`
	Path     string          `json:"path,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}
