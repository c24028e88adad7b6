package lobby

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holloway-dev/blankslate/internal/audit"
)

// Store is the process-wide registry of lobby id -> Lobby.
type Store struct {
	mu      sync.RWMutex
	lobbies map[uuid.UUID]*Lobby

	cacheDir string
	audit    *audit.Publisher
	log      *logrus.Logger
}

// NewStore constructs an empty registry. cacheDir is the deck cache
// directory handed to every lobby it creates; pub may be nil to disable
// audit publishing.
func NewStore(cacheDir string, pub *audit.Publisher, log *logrus.Logger) *Store {
	return &Store{
		lobbies:  make(map[uuid.UUID]*Lobby),
		cacheDir: cacheDir,
		audit:    pub,
		log:      log,
	}
}

// CreateLobby generates a fresh id, constructs the lobby with hostID seeded
// as its first player and host, and inserts it into the registry.
func (s *Store) CreateLobby(name, hostID, hostName string) *Lobby {
	id := uuid.New()
	l := New(id, name, hostID, hostName, s.cacheDir, s.audit, s.log)

	s.mu.Lock()
	s.lobbies[id] = l
	s.mu.Unlock()

	return l
}

// Get retrieves a lobby by id.
func (s *Store) Get(id uuid.UUID) (*Lobby, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// Delete removes a lobby from the registry.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
}

// snapshot returns a stable copy of the currently registered lobbies, safe
// to range over without holding the registry lock.
func (s *Store) snapshot() []*Lobby {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l)
	}
	return out
}

// RunJanitor blocks, sweeping every TimeoutInterval for lobbies idle past
// TimeoutInterval, until done is closed.
func (s *Store) RunJanitor(done <-chan struct{}) {
	ticker := time.NewTicker(TimeoutInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	for _, l := range s.snapshot() {
		if now.Sub(l.LastActivity()) <= TimeoutInterval {
			continue
		}

		l.mu.Lock()
		l.abortGameTaskUnsafe()
		l.mu.Unlock()

		s.Delete(l.ID)
		if s.log != nil {
			s.log.WithField("lobby_id", l.ID).Info("janitor: evicted idle lobby")
		}
	}
}
