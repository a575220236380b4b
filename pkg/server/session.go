package server

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/biogit/biogit/pkg/repo"
	"github.com/biogit/biogit/pkg/wire"
)

// Session is the per-connection state the reader goroutine and dispatcher
// share: the socket, an optionally-selected Repository, and a write lock so
// responses emitted from the single dispatcher never interleave on the
// wire. This plays the role of original_source/include/Csession.h's
// Session class; the explicit 6-byte header-accumulation buffer it
// describes is handled instead by wire.ReadFrame's blocking io.ReadFull,
// the idiomatic-Go equivalent of that reactor's chunk-robust read loop.
type Session struct {
	ID   string
	conn net.Conn

	writeMu sync.Mutex
	closed  atomic.Bool

	repoMu          sync.Mutex
	repository      *repo.Repo
	repoSelected    bool
	repoDisplayPath string
}

func newSession(id string, conn net.Conn) *Session {
	return &Session{ID: id, conn: conn}
}

// Send writes one frame to the client. Safe for concurrent use, though in
// practice only the dispatcher goroutine calls it per the spec's ordering
// guarantee (responses emitted in handler-return order).
func (s *Session) Send(id uint16, body []byte) error {
	if s.closed.Load() {
		return net.ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wire.WriteFrame(s.conn, id, body)
}

func (s *Session) sendError(message string) {
	_ = s.Send(wire.ErrorMsg, []byte(message))
}

func (s *Session) setRepository(r *repo.Repo, displayPath string) {
	s.repoMu.Lock()
	defer s.repoMu.Unlock()
	s.repository = r
	s.repoSelected = true
	s.repoDisplayPath = displayPath
}

func (s *Session) selectedRepository() (*repo.Repo, bool) {
	s.repoMu.Lock()
	defer s.repoMu.Unlock()
	return s.repository, s.repoSelected
}

func (s *Session) close() {
	if s.closed.CompareAndSwap(false, true) {
		_ = s.conn.Close()
	}
}
