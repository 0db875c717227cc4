package bridge

import (
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// TermType is the pty terminal type requested for shell sessions.
const TermType = "xterm-256color"

// shellSession wraps an SSH session that runs the remote login shell on a
// pty. It is the remote end of the relay pumps.
type shellSession struct {
	stdin   io.WriteCloser
	stdout  io.Reader
	session *ssh.Session
}

// windowChangeReq is the window-change channel request payload
// (RFC 4254 §6.7).
type windowChangeReq struct {
	Cols     uint32
	Rows     uint32
	WidthPx  uint32
	HeightPx uint32
}

// resize updates the remote pty dimensions, including pixel sizes.
// Fire-and-forget: the remote side sends no reply.
func (s *shellSession) resize(rows, cols, width, height uint16) error {
	payload := ssh.Marshal(windowChangeReq{
		Cols:     uint32(cols),
		Rows:     uint32(rows),
		WidthPx:  uint32(width),
		HeightPx: uint32(height),
	})
	_, err := s.session.SendRequest("window-change", false, payload)
	return err
}

func (s *shellSession) close() error {
	return s.session.Close()
}

// openShell starts the remote login shell on a new SSH session with an
// xterm-256color pty and returns the wrapped session.
func openShell(client *ssh.Client) (*shellSession, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if err := session.RequestPty(TermType, 24, 80, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	return &shellSession{
		stdin:   stdin,
		stdout:  stdout,
		session: session,
	}, nil
}
