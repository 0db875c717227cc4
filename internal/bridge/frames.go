package bridge

import (
	"encoding/json"
	"fmt"
)

// FrameType discriminates the messages exchanged with the browser terminal.
type FrameType string

const (
	// FrameData carries terminal bytes in either direction.
	FrameData FrameType = "data"
	// FrameResize updates the remote pty dimensions. Inbound only.
	FrameResize FrameType = "resize"
	// FrameStatus reports human-readable progress. Outbound only.
	FrameStatus FrameType = "status"
	// FrameError reports a terminal failure. Outbound only, always
	// followed by closing the channel.
	FrameError FrameType = "error"
)

// Frame is the wire message for the terminal WebSocket. Exactly one
// variant's fields are meaningful, selected by Type.
type Frame struct {
	Type FrameType `json:"type"`

	// FrameData
	Data string `json:"data,omitempty"`

	// FrameResize
	Rows   uint16 `json:"rows,omitempty"`
	Cols   uint16 `json:"cols,omitempty"`
	Width  uint16 `json:"width,omitempty"`
	Height uint16 `json:"height,omitempty"`

	// FrameStatus / FrameError
	Message string `json:"message,omitempty"`
}

func DataFrame(data string) Frame  { return Frame{Type: FrameData, Data: data} }
func StatusFrame(msg string) Frame { return Frame{Type: FrameStatus, Message: msg} }
func ErrorFrame(msg string) Frame  { return Frame{Type: FrameError, Message: msg} }

// Marshal serializes a frame for the wire.
func (f Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// ParseInbound decodes a client frame. Only data and resize frames may
// originate from the client; anything else, including unknown types, is
// rejected with an error rather than silently ignored.
func ParseInbound(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("malformed frame: %w", err)
	}
	switch f.Type {
	case FrameData:
		return f, nil
	case FrameResize:
		if f.Rows == 0 || f.Cols == 0 {
			return Frame{}, fmt.Errorf("resize frame with zero dimensions (rows=%d cols=%d)", f.Rows, f.Cols)
		}
		return f, nil
	case FrameStatus, FrameError:
		return Frame{}, fmt.Errorf("frame type %q is not valid from the client", f.Type)
	default:
		return Frame{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
}
