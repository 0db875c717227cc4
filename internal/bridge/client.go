package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/webterm/internal/logutil"
	"github.com/gluk-w/webterm/internal/profile"
)

// dialCandidate opens a fresh SSH client for one candidate, bounded by the
// connect timeout and the caller's context.
func dialCandidate(ctx context.Context, addr, user string, cand Candidate, timeout time.Duration) (*ssh.Client, error) {
	auth, err := cand.authMethod()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	var (
		client   *ssh.Client
		dialErr  error
		dialDone = make(chan struct{})
	)
	go func() {
		defer close(dialDone)
		client, dialErr = ssh.Dial("tcp", addr, cfg)
	}()

	select {
	case <-ctx.Done():
		go func() {
			// Reap the late client, if any, to avoid an orphaned connection.
			<-dialDone
			if client != nil {
				client.Close()
			}
		}()
		return nil, fmt.Errorf("connect cancelled: %w", ctx.Err())
	case <-dialDone:
		return client, dialErr
	}
}

// Connect opens a one-shot SSH client for a profile with the same candidate
// order and single-fallback policy terminal sessions use. Maintenance
// operations (public-key install) use it to reach a host without a relay.
// The caller owns the returned client.
func Connect(ctx context.Context, p *profile.Profile, authHint string, dec Decrypter, timeout time.Duration) (*ssh.Client, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	candidates, _, err := BuildCandidates(p, authHint, dec)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	fallbackAttempted := false

	for i, cand := range candidates {
		client, err := dialCandidate(ctx, addr, p.Username, cand, timeout)
		if err == nil {
			return client, nil
		}

		log.Printf("[bridge] connect attempt %d to %s failed: %v",
			i+1, logutil.SanitizeForLog(addr), err)

		if !fallbackAttempted && i+1 < len(candidates) {
			fallbackAttempted = true
			continue
		}
		return nil, err
	}

	// Unreachable: BuildCandidates never returns an empty list.
	return nil, errors.New("no candidates")
}
