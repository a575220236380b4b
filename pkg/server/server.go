// Package server implements the biogit TCP server: connection acceptance,
// per-session framing, a single-threaded request dispatcher, and the
// handlers backing the wire protocol's message catalog. Grounded on
// original_source/include/Csession.h (session state machine),
// LogicSystem.h (dispatcher), IoServicePool.h (acceptor/IO pool), and
// UserManager.h (auth wiring).
package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/biogit/biogit/internal/logging"
	"github.com/biogit/biogit/pkg/auth"
	"github.com/biogit/biogit/pkg/wire"
)

// tokenTTLSeconds is how long a LOGIN_USER-issued token remains valid.
const tokenTTLSeconds = 24 * 60 * 60

// job is one unit of dispatcher work: a frame received on a session,
// destined for the single worker goroutine that serializes all repository
// access, matching LogicSystem's one-worker-thread queue.
type job struct {
	session *Session
	frame   wire.Frame
}

// Server owns the repository root directory, the durable user table, the
// token signer, and the live session set. One Server instance corresponds
// to one running `biogit server start` process.
type Server struct {
	RepoRoot string
	Users    *auth.UserManager
	Tokens   *auth.TokenManager
	Logger   *log.Logger
	Audit    *logging.Logger

	listener net.Listener

	sessionsMu sync.Mutex
	sessions   map[string]*Session

	queue chan job
}

// New constructs a Server rooted at repoRoot, with a user table at
// <repoRoot>/user and tokens signed with secret. logger receives plain
// operational messages (startup, shutdown); audit receives the structured
// per-dispatched-message record every handled frame produces. A nil logger
// is replaced by one writing to stderr; a nil audit is replaced by one
// writing under <repoRoot>/logs.
func New(repoRoot, secret string, logger *log.Logger, audit *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("server: resolve repo root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("server: create repo root: %w", err)
	}

	if audit == nil {
		audit, err = logging.New(filepath.Join(absRoot, "logs"), "biogit-audit", false)
		if err != nil {
			return nil, fmt.Errorf("server: default audit logger: %w", err)
		}
	}

	users, err := auth.NewUserManager(filepath.Join(absRoot, "user"))
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManager(secret)
	if err != nil {
		return nil, err
	}

	return &Server{
		RepoRoot: absRoot,
		Users:    users,
		Tokens:   tokens,
		Logger:   logger,
		Audit:    audit,
		sessions: make(map[string]*Session),
		queue:    make(chan job, 256),
	}, nil
}

// ListenAndServe binds addr, starts the single dispatcher goroutine, and
// accepts connections until the listener is closed or an unrecoverable
// accept error occurs. Each accepted connection gets its own reader
// goroutine (the IoServicePool's per-connection binding, expressed here as
// one goroutine per connection rather than round-robin across a fixed
// thread pool).
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.Logger.Printf("biogit server listening on %s, repo root %s", addr, s.RepoRoot)

	go s.dispatchLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		sess := newSession(newSessionID(), conn)
		s.trackSession(sess)
		go s.readLoop(sess)
	}
}

// Close stops accepting new connections, closes every live session, and
// flushes the audit log.
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.sessionsMu.Lock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.sessionsMu.Unlock()
	if s.Audit != nil {
		_ = s.Audit.Close()
	}
	return err
}

func (s *Server) trackSession(sess *Session) {
	s.sessionsMu.Lock()
	s.sessions[sess.ID] = sess
	s.sessionsMu.Unlock()
}

func (s *Server) untrackSession(sess *Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.ID)
	s.sessionsMu.Unlock()
}

// readLoop is the per-connection IO goroutine: it decodes frames and hands
// each one to the dispatcher queue, then blocks on the next read. This
// keeps socket IO and repository-touching handler logic on separate
// goroutines, the same separation of concerns IoServicePool/LogicSystem
// describe.
func (s *Server) readLoop(sess *Session) {
	defer func() {
		sess.close()
		s.untrackSession(sess)
	}()

	reader := wire.NewReader(sess.conn)
	for {
		frame, err := wire.ReadFrame(reader)
		if err != nil {
			return
		}
		s.queue <- job{session: sess, frame: frame}
	}
}

// dispatchLoop is the single worker goroutine that drains the shared queue
// and runs handlers to completion, serializing all repository access the
// way LogicSystem's one dispatcher thread does. Every dispatched frame
// produces one audit record: {uuid, msg_id, outcome, duration}.
func (s *Server) dispatchLoop() {
	for j := range s.queue {
		start := time.Now()
		outcome := s.handle(j.session, j.frame)
		s.Audit.Dispatch(j.session.ID, j.frame.ID, outcome, time.Since(start))
	}
}

func newSessionID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
