package natives

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// socketHandle is the Native payload on a Socket ssvalue.ObjectObj: a
// dialed WebSocket connection plus the mutex guarding concurrent
// send/recv from script code (spec §4.8 native classes may hold
// arbitrary host state via Native).
type socketHandle struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// RegisterSocket installs the Socket native class: `new net@Socket(url)`
// dials a WebSocket endpoint; send/recv exchange text frames.
func RegisterSocket(variant *ffi.Variant) error {
	methods := []sstypes.MethodDef{
		{Name: "send", Proto: variant.Registry.InternFuncProto(sstypes.FuncProto{Return: sstypes.VoidType, Args: []sstypes.Ref{sstypes.StringType}})},
		{Name: "recv", Proto: variant.Registry.InternFuncProto(sstypes.FuncProto{Return: sstypes.StringType})},
		{Name: "close", Proto: variant.Registry.InternFuncProto(sstypes.FuncProto{Return: sstypes.VoidType})},
	}

	nc := &ffi.NativeClass{
		Construct: func(args []ssvalue.Value) (ssvalue.Value, error) {
			if len(args) != 1 {
				return ssvalue.Null(), fmt.Errorf("Socket expects (url)")
			}
			dialer := websocket.DefaultDialer
			dialer.HandshakeTimeout = 10 * time.Second
			conn, _, err := dialer.Dial(args[0].Str(), nil)
			if err != nil {
				return ssvalue.Null(), fmt.Errorf("socket dial failed: %w", err)
			}
			v := ssvalue.NewObject(nc.Def)
			v.ObjectObj().Native = &socketHandle{conn: conn}
			return v, nil
		},
		Destruct: func(recv ssvalue.Value) {
			h, ok := recv.ObjectObj().Native.(*socketHandle)
			if ok && h != nil {
				h.mu.Lock()
				if !h.closed {
					h.conn.Close()
					h.closed = true
				}
				h.mu.Unlock()
			}
		},
		Methods: map[string]*ffi.NativeMethod{
			"send": {
				Proto: sstypes.FuncProto{Return: sstypes.VoidType, Args: []sstypes.Ref{sstypes.StringType}},
				Handler: func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error) {
					h := recv.ObjectObj().Native.(*socketHandle)
					h.mu.Lock()
					defer h.mu.Unlock()
					if h.closed {
						return ssvalue.Null(), fmt.Errorf("send on closed socket")
					}
					if err := h.conn.WriteMessage(websocket.TextMessage, []byte(args[0].Str())); err != nil {
						return ssvalue.Null(), fmt.Errorf("send: %w", err)
					}
					return ssvalue.Null(), nil
				},
			},
			"recv": {
				Proto: sstypes.FuncProto{Return: sstypes.StringType},
				Handler: func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error) {
					h := recv.ObjectObj().Native.(*socketHandle)
					h.mu.Lock()
					defer h.mu.Unlock()
					if h.closed {
						return ssvalue.Null(), fmt.Errorf("recv on closed socket")
					}
					_, data, err := h.conn.ReadMessage()
					if err != nil {
						return ssvalue.Null(), fmt.Errorf("recv: %w", err)
					}
					return ssvalue.NewString(string(data)), nil
				},
			},
			"close": {
				Proto: sstypes.FuncProto{Return: sstypes.VoidType},
				Handler: func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error) {
					h := recv.ObjectObj().Native.(*socketHandle)
					h.mu.Lock()
					defer h.mu.Unlock()
					if !h.closed {
						h.conn.Close()
						h.closed = true
					}
					return ssvalue.Null(), nil
				},
			},
		},
	}
	_, err := variant.RegisterClass("net@Socket", nil, methods, "", nc)
	return err
}
