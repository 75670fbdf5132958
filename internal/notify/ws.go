package notify

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrNoSession = errors.New("no ws session")

// Conn is the part of *websocket.Conn the registry uses.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// wsSession serialises writes to one tab's connection.
type wsSession struct {
	conn Conn
	mu   sync.Mutex
}

func (s *wsSession) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry pushes checkout state changes to the tab that owns the attempt.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*wsSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*wsSession)} }

// Add registers conn for a tab session, closing any previous connection.
func (r *WSRegistry) Add(session string, conn Conn) {
	r.mu.Lock()
	old := r.sessions[session]
	r.sessions[session] = &wsSession{conn: conn}
	r.mu.Unlock()
	if old != nil {
		_ = old.conn.Close()
	}
}

func (r *WSRegistry) Remove(session string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[session]; ok && s.conn == conn {
		delete(r.sessions, session)
	}
}

// Notify sends v to the tab. A failed write drops the connection.
func (r *WSRegistry) Notify(session string, v any) error {
	r.mu.RLock()
	s, ok := r.sessions[session]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(v); err != nil {
		r.Remove(session, s.conn)
		_ = s.conn.Close()
		return err
	}
	return nil
}

// Serve blocks reading from conn until the client goes away, then
// unregisters it. Incoming messages are ignored.
func (r *WSRegistry) Serve(session string, conn *websocket.Conn) {
	r.Add(session, conn)
	defer func() {
		r.Remove(session, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
