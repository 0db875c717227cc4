package bridge

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// Transport is the client-facing side of a session: a persistent,
// full-duplex frame channel. Implementations must tolerate Close being
// called more than once.
type Transport interface {
	// ReadRaw returns the next raw client message. It blocks until a
	// message arrives, the context is done, or the channel closes.
	ReadRaw(ctx context.Context) ([]byte, error)
	// WriteFrame sends a frame to the client.
	WriteFrame(ctx context.Context, f Frame) error
	// Close closes the channel. Safe to call repeatedly.
	Close() error
}

// maxInboundMessage bounds a single client message. Terminal input beyond
// this is abusive.
const maxInboundMessage = 1024 * 1024

// WSTransport adapts a coder/websocket connection to the Transport
// interface, serializing frames as JSON text messages.
type WSTransport struct {
	conn *websocket.Conn
}

func NewWSTransport(conn *websocket.Conn) *WSTransport {
	conn.SetReadLimit(maxInboundMessage)
	return &WSTransport{conn: conn}
}

func (t *WSTransport) ReadRaw(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *WSTransport) WriteFrame(ctx context.Context, f Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return t.conn.Write(ctx, websocket.MessageText, data)
}

// Close performs a normal closure. Closing an already-closed connection
// reports an error from the library, which is deliberately swallowed so
// teardown stays idempotent.
func (t *WSTransport) Close() error {
	t.conn.Close(websocket.StatusNormalClosure, "")
	return nil
}
