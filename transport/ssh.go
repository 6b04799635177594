package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	// DefaultSSHPort is used when no port is configured.
	DefaultSSHPort = 22

	// DefaultSSHCommand is the remote command started on the device.
	DefaultSSHCommand = "tsh"
)

// SSHConfig configures an [SSH] handle.
type SSHConfig struct {
	// Host is the remote hostname or IP address.
	Host string

	// Port is the SSH port (default: 22).
	Port int

	// Username for password authentication.
	Username string

	// Password for password authentication.
	Password string

	// Command is the remote command whose stdio carries messages
	// (default: "tsh").
	Command string

	// KnownHostsFile is checked for the server's host key
	// (default: ~/.ssh/known_hosts).
	KnownHostsFile string

	// InsecureIgnoreHostKey disables host key verification.
	// WARNING: Only use for testing.
	InsecureIgnoreHostKey bool

	// Timeout bounds the TCP connect and SSH handshake.
	Timeout time.Duration
}

// SSH is a [Handle] that exchanges newline-delimited messages with a remote
// command over an SSH session.
type SSH struct {
	cfg    SSHConfig
	dialFn func(ctx context.Context, network, addr string) (net.Conn, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	closing bool

	// writeMu serializes writers. Close never takes it.
	writeMu sync.Mutex

	opened    chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewSSH creates an unstarted SSH handle.
func NewSSH(cfg SSHConfig) (*SSH, error) {
	if cfg.Host == "" {
		return nil, errors.New("transport: ssh host is required")
	}
	if cfg.Username == "" {
		return nil, errors.New("transport: ssh username is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSSHPort
	}
	if cfg.Command == "" {
		cfg.Command = DefaultSSHCommand
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultHandshakeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	var d net.Dialer
	return &SSH{
		cfg:    cfg,
		dialFn: d.DialContext,
		ctx:    ctx,
		cancel: cancel,
		opened: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

func (s *SSH) clientConfig() (*ssh.ClientConfig, error) {
	var hostKey ssh.HostKeyCallback
	if s.cfg.InsecureIgnoreHostKey {
		hostKey = ssh.InsecureIgnoreHostKey()
	} else {
		path := s.cfg.KnownHostsFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("transport: locate known_hosts: %w", err)
			}
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("transport: load known_hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User: s.cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(s.cfg.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = s.cfg.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         s.cfg.Timeout,
	}, nil
}

// Start connects in the background and delivers events to h.
func (s *SSH) Start(h Handlers) {
	s.startOnce.Do(func() {
		go s.run(h)
	})
}

func (s *SSH) run(h Handlers) {
	defer func() {
		if h.OnClose != nil {
			h.OnClose()
		}
	}()
	defer close(s.done)

	fail := func(err error) {
		if !s.isClosing() && h.OnError != nil {
			h.OnError(err)
		}
	}

	stdout, err := s.open()
	if err != nil {
		fail(err)
		return
	}

	defer s.release()

	close(s.opened)
	if h.OnOpen != nil {
		h.OnOpen()
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if h.OnMessage != nil {
			msg := make([]byte, len(line))
			copy(msg, line)
			h.OnMessage(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		fail(fmt.Errorf("transport: read ssh: %w", err))
	}
}

// open dials, authenticates and starts the remote command.
func (s *SSH) open() (io.Reader, error) {
	cfg, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialCtx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	conn, err := s.dialFn(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial ssh: %w", err)
	}

	_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: ssh handshake: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("transport: ssh session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("transport: ssh stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("transport: ssh stdout: %w", err)
	}

	if err := session.Start(s.cfg.Command); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("transport: start %q: %w", s.cfg.Command, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		_ = client.Close()
		return nil, ErrClosed
	}
	s.client = client
	s.session = session
	s.stdin = stdin
	return stdout, nil
}

// release ends the session once the remote command's output has ended,
// unless Close already took it.
func (s *SSH) release() {
	s.mu.Lock()
	client, session := s.client, s.session
	s.client, s.session, s.stdin = nil, nil, nil
	s.mu.Unlock()
	if session != nil {
		_ = session.Close()
	}
	if client != nil {
		_ = client.Close()
	}
}

func (s *SSH) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Send writes data followed by a newline to the remote command's stdin.
//
// Canceling ctx during a stalled write closes the connection.
func (s *SSH) Send(ctx context.Context, data []byte) error {
	if s.isClosing() {
		return ErrClosed
	}

	select {
	case <-s.opened:
	case <-s.done:
		return ErrNotOpen
	case <-ctx.Done():
		return ctx.Err()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	client, stdin, closing := s.client, s.stdin, s.closing
	s.mu.Unlock()
	if closing {
		return ErrClosed
	}
	if stdin == nil {
		return ErrNotOpen
	}

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	if _, err := stdin.Write(buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if s.isClosing() {
			return ErrClosed
		}
		return fmt.Errorf("transport: write ssh: %w", err)
	}
	return nil
}

// Close ends the session and the underlying connection. It does not wait for
// an in-flight Send.
func (s *SSH) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		client, session := s.client, s.session
		s.client, s.session, s.stdin = nil, nil, nil
		s.mu.Unlock()

		s.cancel()

		if session != nil {
			_ = session.Close()
		}
		if client != nil {
			err = client.Close()
		}
	})
	return err
}
