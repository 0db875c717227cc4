// Package bridge implements the terminal session bridge: it turns a
// resolved connection profile into an authenticated SSH shell and relays
// frames between the client WebSocket and the remote pty for the lifetime
// of the session.
package bridge

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/webterm/internal/logutil"
	"github.com/gluk-w/webterm/internal/profile"
)

// SessionState is the lifecycle state of one terminal session.
type SessionState string

const (
	// StateIdle is the initial state before candidates are built.
	StateIdle SessionState = "idle"
	// StateConnecting means an SSH connection attempt is in flight.
	StateConnecting SessionState = "connecting"
	// StateAuthenticated means the SSH handshake succeeded and the shell
	// channel is being opened.
	StateAuthenticated SessionState = "authenticated"
	// StateShellOpen means the relay pumps are running.
	StateShellOpen SessionState = "shell_open"
	// StateClosed is terminal; no state is ever revisited after it.
	StateClosed SessionState = "closed"
)

// StateCallback observes session state transitions. Used by tests and
// diagnostics; may be nil.
type StateCallback func(sessionID string, from, to SessionState)

// DefaultConnectTimeout bounds the SSH connect/handshake phase when the
// config does not override it.
const DefaultConnectTimeout = 20 * time.Second

// outputBufferSize is the read chunk size for the shell-to-client pump.
const outputBufferSize = 32 * 1024

// Config carries the knobs for the session bridge.
type Config struct {
	// ConnectTimeout bounds each connection attempt, handshake included.
	ConnectTimeout time.Duration
	// OnStateChange, when set, is invoked on every session state
	// transition.
	OnStateChange StateCallback
}

// Bridge creates terminal sessions. One Bridge serves all inbound
// connections; each Run call owns exactly one session and one SSH client
// at a time. Safe for concurrent use.
type Bridge struct {
	connectTimeout time.Duration
	onStateChange  StateCallback
}

func New(cfg Config) *Bridge {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Bridge{
		connectTimeout: timeout,
		onStateChange:  cfg.OnStateChange,
	}
}

// Run drives a complete terminal session over the given transport: build
// candidates, connect with single-fallback, open the shell, relay until
// either side closes. It blocks until the session is torn down and always
// leaves both sides closed.
func (b *Bridge) Run(ctx context.Context, transport Transport, p *profile.Profile, authHint string, dec Decrypter) {
	s := &session{
		id:        uuid.New().String(),
		bridge:    b,
		transport: transport,
		profile:   p,
		state:     StateIdle,
	}
	s.run(ctx, authHint, dec)
}

// session is the per-connection state: inbound transport, remote client,
// and the lifecycle state machine. Sessions are never reused.
type session struct {
	id        string
	bridge    *Bridge
	transport Transport
	profile   *profile.Profile

	mu        sync.Mutex
	state     SessionState
	errorSent bool

	teardownOnce sync.Once
}

func (s *session) setState(to SessionState) {
	s.mu.Lock()
	from := s.state
	if from == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	if from != to && s.bridge.onStateChange != nil {
		s.bridge.onStateChange(s.id, from, to)
	}
}

// fail reports a terminal failure: at most one error frame, then close.
func (s *session) fail(ctx context.Context, msg string) {
	s.mu.Lock()
	alreadySent := s.errorSent
	s.errorSent = true
	s.mu.Unlock()

	if !alreadySent {
		if err := s.transport.WriteFrame(ctx, ErrorFrame(msg)); err != nil {
			log.Printf("[bridge] session %s: error frame write failed: %v", s.id, err)
		}
	}
	s.setState(StateClosed)
	s.transport.Close()
}

func (s *session) run(ctx context.Context, authHint string, dec Decrypter) {
	p := s.profile

	candidates, method, err := BuildCandidates(p, authHint, dec)
	if err != nil {
		log.Printf("[bridge] session %s: connection %d unusable: %v", s.id, p.ID, err)
		s.fail(ctx, err.Error())
		return
	}

	log.Printf("[bridge] session %s: connecting to %s (%s auth, %d candidate(s))",
		s.id, logutil.SanitizeForLog(p.Name), method, len(candidates))

	client := s.connect(ctx, candidates)
	if client == nil {
		return
	}

	s.setState(StateAuthenticated)
	if err := s.transport.WriteFrame(ctx, StatusFrame(fmt.Sprintf("Connected to %s", p.Name))); err != nil {
		log.Printf("[bridge] session %s: status frame write failed: %v", s.id, err)
		client.Close()
		s.setState(StateClosed)
		s.transport.Close()
		return
	}

	shell, err := openShell(client)
	if err != nil {
		// Shell-open failures are fatal; no fallback to other candidates.
		log.Printf("[bridge] session %s: shell open failed: %v", s.id, err)
		s.fail(ctx, "Failed to start shell: "+err.Error())
		client.Close()
		return
	}

	s.setState(StateShellOpen)
	s.relay(ctx, client, shell)
}

// connect walks the candidate queue. At most one fallback attempt is made
// per session regardless of how many candidates remain: after the first
// failure the next candidate is tried, after the second the session fails.
// Every connection-level error drives fallback the same way; auth
// rejections and unreachable hosts are deliberately not distinguished.
func (s *session) connect(ctx context.Context, candidates []Candidate) *ssh.Client {
	s.setState(StateConnecting)

	addr := net.JoinHostPort(s.profile.Host, strconv.Itoa(s.profile.Port))
	fallbackAttempted := false

	for i, cand := range candidates {
		client, err := s.dial(ctx, addr, cand)
		if err == nil {
			return client
		}

		log.Printf("[bridge] session %s: attempt %d to %s failed: %v",
			s.id, i+1, logutil.SanitizeForLog(addr), err)

		if !fallbackAttempted && i+1 < len(candidates) {
			fallbackAttempted = true
			continue
		}

		s.fail(ctx, "SSH connection failed: "+err.Error())
		return nil
	}

	// Unreachable: BuildCandidates never returns an empty list.
	s.fail(ctx, "SSH connection failed: no candidates")
	return nil
}

func (s *session) dial(ctx context.Context, addr string, cand Candidate) (*ssh.Client, error) {
	return dialCandidate(ctx, addr, s.profile.Username, cand, s.bridge.connectTimeout)
}

// relay runs the two pumps until either side ends the session, then tears
// both sides down. Teardown is idempotent: every exit path funnels through
// the same sync.Once.
func (s *session) relay(ctx context.Context, client *ssh.Client, shell *shellSession) {
	relayCtx, cancel := context.WithCancel(ctx)

	teardown := func(reason string) {
		s.teardownOnce.Do(func() {
			log.Printf("[bridge] session %s: closing (%s)", s.id, reason)
			s.setState(StateClosed)
			cancel()
			shell.close()
			client.Close()
			s.transport.Close()
		})
	}
	defer teardown("relay exit")

	// Remote client closed underneath us: close the inbound side too.
	go func() {
		client.Wait()
		teardown("ssh client closed")
	}()

	// Shell output to client. Write failures are logged and dropped; the
	// pump only stops when the shell stream ends.
	go func() {
		buf := make([]byte, outputBufferSize)
		for {
			n, err := shell.stdout.Read(buf)
			if n > 0 {
				if werr := s.transport.WriteFrame(relayCtx, DataFrame(string(buf[:n]))); werr != nil {
					log.Printf("[bridge] session %s: dropped %d output bytes: %v", s.id, n, werr)
				}
			}
			if err != nil {
				teardown("shell stream ended")
				return
			}
		}
	}()

	// Client input to shell. Malformed frames are logged and ignored;
	// they never end the session.
	for {
		raw, err := s.transport.ReadRaw(relayCtx)
		if err != nil {
			teardown("client channel closed")
			return
		}

		frame, err := ParseInbound(raw)
		if err != nil {
			log.Printf("[bridge] session %s: ignoring inbound frame: %v", s.id, err)
			continue
		}

		switch frame.Type {
		case FrameData:
			if _, err := shell.stdin.Write([]byte(frame.Data)); err != nil {
				log.Printf("[bridge] session %s: stdin write failed: %v", s.id, err)
			}
		case FrameResize:
			if err := shell.resize(frame.Rows, frame.Cols, frame.Width, frame.Height); err != nil {
				log.Printf("[bridge] session %s: resize failed: %v", s.id, err)
			}
		}
	}
}
