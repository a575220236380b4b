// Package remote implements the client side of the biogit transfer
// protocol: a low-level framed connection (Client) plus the push, fetch,
// pull, and clone algorithms built on top of it, grounded on
// original_source/include/RemoteClient.h and the transfer-client section of
// the protocol specification.
package remote

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/biogit/biogit/pkg/object"
	"github.com/biogit/biogit/pkg/wire"
)

// Endpoint is a parsed biogit remote address: "host:port/repo-relative-path".
type Endpoint struct {
	Host string
	Port string
	Repo string
}

// ParseEndpoint parses "host:port/repo-path" into its parts.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	hostPort, repoPath, ok := strings.Cut(raw, "/")
	if !ok || repoPath == "" {
		return Endpoint{}, fmt.Errorf("remote: endpoint %q must be host:port/repo-path", raw)
	}
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Endpoint{}, fmt.Errorf("remote: endpoint %q: %w", raw, err)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return Endpoint{}, fmt.Errorf("remote: endpoint %q: invalid port: %w", raw, err)
	}
	return Endpoint{Host: host, Port: port, Repo: repoPath}, nil
}

func (e Endpoint) addr() string { return net.JoinHostPort(e.Host, e.Port) }

// Client is a synchronous, blocking connection to a biogit server, scoped
// to one target repository. The transfer protocol is invoked from the CLI
// process rather than from within the server's event loop, so a simple
// blocking round-trip client (rather than anything async) matches the
// spec's concurrency model for this side.
type Client struct {
	conn   net.Conn
	reader interface {
		Read([]byte) (int, error)
	}
	token string
}

// Dial connects to ep, selects its repository via TARGET_REPO, and returns
// a ready Client. token may be empty for operations that need no auth
// (registration, login).
func Dial(ep Endpoint, token string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", ep.addr(), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", ep.addr(), err)
	}
	c := &Client{conn: conn, reader: wire.NewReader(conn), token: token}

	if err := wire.WriteFrame(conn, wire.TargetRepo, wire.JoinNulFields(ep.Repo)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("remote: send TARGET_REPO: %w", err)
	}
	frame, err := wire.ReadFrame(c.reader)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("remote: read TARGET_REPO reply: %w", err)
	}
	switch frame.ID {
	case wire.TargetRepoAck:
	case wire.TargetRepoError:
		conn.Close()
		return nil, fmt.Errorf("remote: server rejected repository %q: %s", ep.Repo, string(frame.Body))
	default:
		conn.Close()
		return nil, fmt.Errorf("remote: unexpected reply %d to TARGET_REPO", frame.ID)
	}
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) sendAuth(id uint16, payload []byte) error {
	return wire.WriteFrame(c.conn, id, wire.EncodeAuth(c.token, payload))
}

func (c *Client) recv() (wire.Frame, error) {
	return wire.ReadFrame(c.reader)
}

// Register performs REGISTER_USER against a dialed-but-unauthenticated
// connection (no repository need be selected for this to succeed on the
// server side, though Dial always selects one first).
func Register(ep Endpoint, username, password string) error {
	conn, err := net.DialTimeout("tcp", ep.addr(), 10*time.Second)
	if err != nil {
		return fmt.Errorf("remote: dial %s: %w", ep.addr(), err)
	}
	defer conn.Close()
	reader := wire.NewReader(conn)

	if err := wire.WriteFrame(conn, wire.RegisterUser, wire.JoinNulFields(username, password)); err != nil {
		return err
	}
	frame, err := wire.ReadFrame(reader)
	if err != nil {
		return err
	}
	switch frame.ID {
	case wire.RegisterSuccess:
		return nil
	case wire.RegisterFailure:
		return fmt.Errorf("remote: registration failed: %s", string(frame.Body))
	default:
		return fmt.Errorf("remote: unexpected reply %d to REGISTER_USER", frame.ID)
	}
}

// Login performs LOGIN_USER and returns the issued session token.
func Login(ep Endpoint, username, password string) (string, error) {
	conn, err := net.DialTimeout("tcp", ep.addr(), 10*time.Second)
	if err != nil {
		return "", fmt.Errorf("remote: dial %s: %w", ep.addr(), err)
	}
	defer conn.Close()
	reader := wire.NewReader(conn)

	if err := wire.WriteFrame(conn, wire.LoginUser, wire.JoinNulFields(username, password)); err != nil {
		return "", err
	}
	frame, err := wire.ReadFrame(reader)
	if err != nil {
		return "", err
	}
	switch frame.ID {
	case wire.LoginSuccess:
		fields, err := wire.NulFields(frame.Body, 1)
		if err != nil {
			return "", err
		}
		return fields[0], nil
	case wire.LoginFailure:
		return "", fmt.Errorf("remote: login failed: %s", string(frame.Body))
	default:
		return "", fmt.Errorf("remote: unexpected reply %d to LOGIN_USER", frame.ID)
	}
}

// ListRefs performs LIST_REFS, returning every ref name (as advertised by
// GetAllLocalRefs, e.g. "HEAD", "refs/heads/main") mapped to its hash.
func (c *Client) ListRefs() (map[string]object.Hash, error) {
	if err := c.sendAuth(wire.ListRefs, nil); err != nil {
		return nil, err
	}
	frame, err := c.recv()
	if err != nil {
		return nil, err
	}
	if frame.ID == wire.AuthRequired {
		return nil, fmt.Errorf("remote: auth required: %s", string(frame.Body))
	}
	if frame.ID != wire.RefsListBegin {
		return nil, fmt.Errorf("remote: unexpected reply %d to LIST_REFS", frame.ID)
	}

	refs := make(map[string]object.Hash)
	for {
		frame, err = c.recv()
		if err != nil {
			return nil, err
		}
		switch frame.ID {
		case wire.RefsEntry:
			fields, err := wire.NulFields(frame.Body, 2)
			if err != nil {
				return nil, err
			}
			refs[fields[0]] = object.Hash(fields[1])
		case wire.RefsListEnd:
			return refs, nil
		default:
			return nil, fmt.Errorf("remote: unexpected reply %d in refs list", frame.ID)
		}
	}
}

// GetObject fetches one object's raw envelope bytes (header + content) by
// hash, verifying the server's claimed hash against the content.
func (c *Client) GetObject(h object.Hash) ([]byte, bool, error) {
	if err := c.sendAuth(wire.GetObject, []byte(h)); err != nil {
		return nil, false, err
	}
	frame, err := c.recv()
	if err != nil {
		return nil, false, err
	}
	switch frame.ID {
	case wire.ObjectNotFound:
		return nil, false, nil
	case wire.ObjectContent:
		if len(frame.Body) < 40 {
			return nil, false, fmt.Errorf("remote: malformed OBJECT_CONTENT")
		}
		got := object.Hash(frame.Body[:40])
		raw := frame.Body[40:]
		if got != h {
			return nil, false, fmt.Errorf("remote: object content for %s arrived tagged %s", h, got)
		}
		if computed := object.HashBytes(raw); computed != h {
			return nil, false, fmt.Errorf("remote: object %s failed hash verification (got %s)", h, computed)
		}
		return raw, true, nil
	case wire.AuthRequired:
		return nil, false, fmt.Errorf("remote: auth required: %s", string(frame.Body))
	default:
		return nil, false, fmt.Errorf("remote: unexpected reply %d to GET_OBJECT", frame.ID)
	}
}

// CheckObjects asks which of hashes the server already has.
func (c *Client) CheckObjects(hashes []object.Hash) (map[object.Hash]bool, error) {
	payload := make([]byte, 0, 4+len(hashes)*40)
	payload = appendUint32(payload, uint32(len(hashes)))
	for _, h := range hashes {
		payload = append(payload, []byte(h)...)
	}
	if err := c.sendAuth(wire.CheckObjects, payload); err != nil {
		return nil, err
	}
	frame, err := c.recv()
	if err != nil {
		return nil, err
	}
	if frame.ID == wire.AuthRequired {
		return nil, fmt.Errorf("remote: auth required: %s", string(frame.Body))
	}
	if frame.ID != wire.CheckObjectsResult || len(frame.Body) < 4 {
		return nil, fmt.Errorf("remote: unexpected reply %d to CHECK_OBJECTS", frame.ID)
	}
	count := readUint32(frame.Body[0:4])
	if int(count) != len(hashes) || len(frame.Body) < 4+int(count) {
		return nil, fmt.Errorf("remote: malformed CHECK_OBJECTS_RESULT")
	}
	result := make(map[object.Hash]bool, len(hashes))
	for i, h := range hashes {
		result[h] = frame.Body[4+i] == wire.ObjectPresent
	}
	return result, nil
}

// PutObject uploads one object's raw envelope bytes.
func (c *Client) PutObject(h object.Hash, raw []byte) error {
	payload := make([]byte, 0, 40+len(raw))
	payload = append(payload, []byte(h)...)
	payload = append(payload, raw...)
	if err := c.sendAuth(wire.PutObject, payload); err != nil {
		return err
	}
	frame, err := c.recv()
	if err != nil {
		return err
	}
	switch frame.ID {
	case wire.AckOK:
		return nil
	case wire.AuthRequired:
		return fmt.Errorf("remote: auth required: %s", string(frame.Body))
	case wire.ErrorMsg:
		return fmt.Errorf("remote: put object %s rejected: %s", h, string(frame.Body))
	default:
		return fmt.Errorf("remote: unexpected reply %d to PUT_OBJECT", frame.ID)
	}
}

// UpdateRef performs a compare-and-swap ref update on the server.
func (c *Client) UpdateRef(refName string, newHash, oldHash object.Hash, force bool) error {
	payload := make([]byte, 0, 1+len(refName)+1+40+40)
	if force {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}
	payload = append(payload, []byte(refName)...)
	payload = append(payload, 0)
	payload = append(payload, []byte(newHash)...)
	payload = append(payload, []byte(oldHash)...)

	if err := c.sendAuth(wire.UpdateRef, payload); err != nil {
		return err
	}
	frame, err := c.recv()
	if err != nil {
		return err
	}
	switch frame.ID {
	case wire.RefUpdated:
		return nil
	case wire.RefUpdateDenied:
		return fmt.Errorf("remote: ref update denied: %s", string(frame.Body))
	case wire.AuthRequired:
		return fmt.Errorf("remote: auth required: %s", string(frame.Body))
	default:
		return fmt.Errorf("remote: unexpected reply %d to UPDATE_REF", frame.ID)
	}
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
