package server

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/biogit/biogit/pkg/object"
	"github.com/biogit/biogit/pkg/repo"
	"github.com/biogit/biogit/pkg/wire"
)

// handle dispatches one frame to its handler and returns a short outcome
// verdict for the audit log ("ok" or the error text). Any error a handler
// returns is reported to the client as an ERROR frame and never propagates
// further, matching the spec's "handlers never crash the dispatcher"
// requirement.
func (s *Server) handle(sess *Session, f wire.Frame) string {
	var err error
	switch f.ID {
	case wire.TargetRepo:
		err = s.handleTargetRepo(sess, f)
	case wire.RegisterUser:
		err = s.handleRegisterUser(sess, f)
	case wire.LoginUser:
		err = s.handleLoginUser(sess, f)
	case wire.ListRefs:
		err = s.handleListRefs(sess, f)
	case wire.GetObject:
		err = s.handleGetObject(sess, f)
	case wire.CheckObjects:
		err = s.handleCheckObjects(sess, f)
	case wire.PutObject:
		err = s.handlePutObject(sess, f)
	case wire.UpdateRef:
		err = s.handleUpdateRef(sess, f)
	default:
		if f.ID >= 3000 {
			outcome := fmt.Sprintf("unexpected response message id %d from client", f.ID)
			sess.sendError(outcome)
			return outcome
		}
		outcome := fmt.Sprintf("unknown message id %d", f.ID)
		sess.sendError(outcome)
		return outcome
	}
	if err != nil {
		sess.sendError(err.Error())
		return err.Error()
	}
	return "ok"
}

// handleTargetRepo selects the repository this session operates on. The
// relative path is validated to stay within RepoRoot before opening it,
// mirroring Csession's path-containment check ahead of Repository::load.
func (s *Server) handleTargetRepo(sess *Session, f wire.Frame) error {
	fields, err := wire.NulFields(f.Body, 1)
	if err != nil || len(fields) == 0 {
		_ = sess.Send(wire.TargetRepoError, []byte("malformed TARGET_REPO payload"))
		return nil
	}
	relPath := strings.TrimSpace(fields[0])

	clean := filepath.Clean(relPath)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
		_ = sess.Send(wire.TargetRepoError, []byte("invalid repository path"))
		return nil
	}

	full := filepath.Join(s.RepoRoot, clean)
	rel, err := filepath.Rel(s.RepoRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		_ = sess.Send(wire.TargetRepoError, []byte("repository path escapes repository root"))
		return nil
	}

	r, err := repo.Open(full)
	if err != nil {
		_ = sess.Send(wire.TargetRepoError, []byte(fmt.Sprintf("repository %q not found", relPath)))
		return nil
	}

	sess.setRepository(r, relPath)
	return sess.Send(wire.TargetRepoAck, []byte(relPath))
}

func (s *Server) handleRegisterUser(sess *Session, f wire.Frame) error {
	fields, err := wire.NulFields(f.Body, 2)
	if err != nil {
		_ = sess.Send(wire.RegisterFailure, []byte("malformed REGISTER_USER payload"))
		return nil
	}
	if err := s.Users.Register(fields[0], fields[1]); err != nil {
		_ = sess.Send(wire.RegisterFailure, []byte(err.Error()))
		return nil
	}
	return sess.Send(wire.RegisterSuccess, nil)
}

func (s *Server) handleLoginUser(sess *Session, f wire.Frame) error {
	fields, err := wire.NulFields(f.Body, 2)
	if err != nil {
		_ = sess.Send(wire.LoginFailure, []byte("malformed LOGIN_USER payload"))
		return nil
	}
	ok, err := s.Users.Verify(fields[0], fields[1])
	if err != nil || !ok {
		_ = sess.Send(wire.LoginFailure, []byte("invalid username or password"))
		return nil
	}
	token := s.Tokens.Generate(fields[0], tokenTTLSeconds)
	return sess.Send(wire.LoginSuccess, wire.JoinNulFields(token))
}

// authenticate extracts and validates the token envelope of an
// authenticated client->server message, replying AUTH_REQUIRED on failure.
func (s *Server) authenticate(sess *Session, f wire.Frame) (payload []byte, ok bool) {
	token, payload, err := wire.DecodeAuth(f.Body)
	if err != nil {
		_ = sess.Send(wire.AuthRequired, []byte("missing auth token"))
		return nil, false
	}
	if _, err := s.Tokens.Validate(token); err != nil {
		_ = sess.Send(wire.AuthRequired, []byte(err.Error()))
		return nil, false
	}
	return payload, true
}

func (s *Server) requireRepository(sess *Session) (*repo.Repo, bool) {
	r, selected := sess.selectedRepository()
	if !selected {
		sess.sendError("no repository selected; send TARGET_REPO first")
		return nil, false
	}
	return r, true
}

func (s *Server) handleListRefs(sess *Session, f wire.Frame) error {
	if _, ok := s.authenticate(sess, f); !ok {
		return nil
	}
	r, ok := s.requireRepository(sess)
	if !ok {
		return nil
	}

	refs, err := r.GetAllLocalRefs()
	if err != nil {
		return fmt.Errorf("list refs: %w", err)
	}
	if err := sess.Send(wire.RefsListBegin, nil); err != nil {
		return err
	}
	for _, entry := range refs {
		body := wire.JoinNulFields(entry.Name, string(entry.Hash))
		if err := sess.Send(wire.RefsEntry, body); err != nil {
			return err
		}
	}
	return sess.Send(wire.RefsListEnd, nil)
}

func (s *Server) handleGetObject(sess *Session, f wire.Frame) error {
	payload, ok := s.authenticate(sess, f)
	if !ok {
		return nil
	}
	r, ok := s.requireRepository(sess)
	if !ok {
		return nil
	}

	h := object.Hash(strings.TrimSpace(string(payload)))
	raw, err := r.Store.ReadRaw(h)
	if err != nil {
		return sess.Send(wire.ObjectNotFound, []byte(h))
	}
	body := append([]byte(h), raw...)
	return sess.Send(wire.ObjectContent, body)
}

func (s *Server) handleCheckObjects(sess *Session, f wire.Frame) error {
	payload, ok := s.authenticate(sess, f)
	if !ok {
		return nil
	}
	r, ok := s.requireRepository(sess)
	if !ok {
		return nil
	}
	if len(payload) < 4 {
		return fmt.Errorf("check objects: payload too short")
	}
	count := binary.BigEndian.Uint32(payload[0:4])
	hashes := payload[4:]
	if uint32(len(hashes)) < count*40 {
		return fmt.Errorf("check objects: truncated hash list")
	}

	result := make([]byte, 4+count)
	binary.BigEndian.PutUint32(result[0:4], count)
	for i := uint32(0); i < count; i++ {
		h := object.Hash(hashes[i*40 : i*40+40])
		if r.Store.Has(h) {
			result[4+i] = wire.ObjectPresent
		} else {
			result[4+i] = wire.ObjectAbsent
		}
	}
	return sess.Send(wire.CheckObjectsResult, result)
}

func (s *Server) handlePutObject(sess *Session, f wire.Frame) error {
	payload, ok := s.authenticate(sess, f)
	if !ok {
		return nil
	}
	r, ok := s.requireRepository(sess)
	if !ok {
		return nil
	}
	if len(payload) < 40 {
		return fmt.Errorf("put object: payload too short")
	}
	h := object.Hash(payload[:40])
	raw := payload[40:]

	if computed := object.HashBytes(raw); computed != h {
		return fmt.Errorf("put object: hash mismatch, claimed %s computed %s", h, computed)
	}
	if err := r.Store.WriteRaw(h, raw); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return sess.Send(wire.AckOK, nil)
}

func (s *Server) handleUpdateRef(sess *Session, f wire.Frame) error {
	payload, ok := s.authenticate(sess, f)
	if !ok {
		return nil
	}
	r, ok := s.requireRepository(sess)
	if !ok {
		return nil
	}
	if len(payload) < 1 {
		return fmt.Errorf("update ref: payload too short")
	}
	force := payload[0] != 0
	rest := payload[1:]

	idx := strings.IndexByte(string(rest), 0)
	if idx < 0 {
		return fmt.Errorf("update ref: malformed payload")
	}
	refName := string(rest[:idx])
	rest = rest[idx+1:]
	if len(rest) < 40 {
		return fmt.Errorf("update ref: missing new hash")
	}
	newHash := object.Hash(rest[:40])
	rest = rest[40:]
	var oldHash object.Hash
	if len(rest) >= 40 {
		oldHash = object.Hash(rest[:40])
	}

	result, err := r.UpdateRef(refName, newHash, oldHash, force)
	if result == repo.RefUpdateSuccess {
		return sess.Send(wire.RefUpdated, wire.JoinNulFields(refName, string(newHash), string(oldHash)))
	}

	reason := "update rejected"
	if err != nil {
		reason = err.Error()
	}
	return sess.Send(wire.RefUpdateDenied, []byte(reason))
}
