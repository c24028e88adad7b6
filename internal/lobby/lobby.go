// Package lobby implements the per-lobby game engine: the authoritative
// lobby state machine, its controller operations, the submission/judging
// game loop, and the dual-channel event bus that fans state changes out to
// connected players.
package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holloway-dev/blankslate/internal/audit"
	"github.com/holloway-dev/blankslate/internal/auth"
	"github.com/holloway-dev/blankslate/internal/deck"
)

// ticketTTL bounds how long a session ticket remains presentable after
// issuance; well past GracePeriod so a ticket outlives the reconnect window
// it is meant to shortcut.
const ticketTTL = 24 * time.Hour

// GracePeriod is the fixed window a disconnected player has to reconnect
// before being removed.
const GracePeriod = 60 * time.Second

// TimeoutInterval is both the janitor's sweep interval and the staleness
// threshold past which an idle lobby is evicted.
const TimeoutInterval = 30 * time.Minute

// HandSize is the number of white cards every player holds between rounds.
const HandSize = 10

// notifier is a single-slot wakeup, the Go analogue of the original's
// single-slot async notify: a send is a no-op if a signal is already
// pending, and a receive never blocks forever once a timeout fires.
type notifier chan struct{}

func newNotifier() notifier { return make(notifier, 1) }

func (n notifier) signal() {
	select {
	case n <- struct{}{}:
	default:
	}
}

// LobbyData is the single readers-writer-lock-guarded aggregate holding
// all authoritative lobby state.
type LobbyData struct {
	Settings  Settings
	Players   map[string]*Player
	CzarOrder []string
	Round     int
	BlackCard *deck.BlackCard
	Subs      *Submissions
	CzarPick  *int
	Phase     Phase
}

// Lobby is one running lobby: its guarded data, event bus, deck cache
// handle, activity clock, in-flight game task, and disconnect timers.
type Lobby struct {
	ID   uuid.UUID
	Name string

	mu   sync.RWMutex
	data LobbyData

	Bus   *Bus
	Cache string // deck cache directory for this process
	Audit *audit.Publisher
	Log   *logrus.Logger

	lastActivity time.Time
	activityMu   sync.Mutex

	gameMu   sync.Mutex
	gameTask context.CancelFunc

	disconnectMu     sync.Mutex
	disconnectTimers map[string]*time.Timer

	submissionNotify notifier
	czarNotify       notifier

	tickets *auth.TicketIssuer
}

// New constructs a lobby with hostID seeded as its first player and host.
func New(id uuid.UUID, name, hostID, hostName string, cacheDir string, pub *audit.Publisher, log *logrus.Logger) *Lobby {
	l := &Lobby{
		ID:   id,
		Name: name,
		data: LobbyData{
			Settings: Settings{
				MaxPlayers:   8,
				WaitTimeSecs: 3,
			},
			Players: map[string]*Player{
				hostID: {PlayerInfo: PlayerInfo{Name: hostName, IsHost: true}},
			},
			CzarOrder: []string{hostID},
			Phase:     PhaseLobbyOpen,
			Subs:      newSubmissions(),
		},
		Bus:              NewBus(),
		Cache:            cacheDir,
		Audit:            pub,
		Log:              log,
		lastActivity:     time.Now(),
		disconnectTimers: make(map[string]*time.Timer),
		submissionNotify: newNotifier(),
		czarNotify:       newNotifier(),
	}
	ti, err := auth.NewTicketIssuer(ticketTTL)
	if err != nil {
		log.WithError(err).Warn("session ticket issuer unavailable, rejoin falls back to raw secret only")
	}
	l.tickets = ti
	return l
}

// ResolveTicket verifies a client-presented session ticket against this
// lobby. Any failure (tickets unavailable, wrong lobby, expired, malformed)
// reports ok=false so the caller falls back to the raw-secret rejoin path
// rather than treating it as an authentication error.
func (l *Lobby) ResolveTicket(ticket string) (playerID, secret string, ok bool) {
	if l.tickets == nil || ticket == "" {
		return "", "", false
	}
	claims, err := l.tickets.Verify(ticket, l.ID.String())
	if err != nil {
		return "", "", false
	}
	return claims.PlayerID, claims.Secret, true
}

// IssueTicket signs a session ticket for playerID/secret, provided this
// lobby's settings have opted into session tickets. Returns ok=false if
// tickets are disabled, unavailable, or there is no secret to bind.
func (l *Lobby) IssueTicket(playerID, secret string) (ticket string, ok bool) {
	l.mu.RLock()
	enabled := l.data.Settings.UseSessionTickets
	l.mu.RUnlock()
	if !enabled || l.tickets == nil || secret == "" {
		return "", false
	}
	t, err := l.tickets.Issue(playerID, l.ID.String(), secret)
	if err != nil {
		l.Log.WithError(err).Warn("session ticket issue failed")
		return "", false
	}
	return t, true
}

func (l *Lobby) touch() {
	l.activityMu.Lock()
	l.lastActivity = time.Now()
	l.activityMu.Unlock()
}

// LastActivity returns the timestamp of the most recent mutation.
func (l *Lobby) LastActivity() time.Time {
	l.activityMu.Lock()
	defer l.activityMu.Unlock()
	return l.lastActivity
}

// emit broadcasts evt and best-effort publishes it to the audit trail. This
// must only be called after the write lock guarding LobbyData has been
// released.
func (l *Lobby) emit(evt ServerEvent, round int, phase Phase) {
	l.Bus.Broadcast(evt)
	l.Audit.Publish(audit.Record{
		LobbyID:   l.ID,
		Round:     round,
		Phase:     string(phase),
		EventType: evt.eventType(),
		EmittedAt: time.Now().Unix(),
	})
}

// snapshotForUnsafe projects current state for one viewer, per the
// phase-gated visibility rules. Caller must hold at least the read lock.
func (l *Lobby) snapshotForUnsafe(playerID string) ClientLobby {
	d := &l.data

	players := make(map[string]PlayerInfo, len(d.Players))
	for id, p := range d.Players {
		players[id] = p.PlayerInfo
	}

	snap := ClientLobby{
		Players:  players,
		Settings: d.Settings,
		Phase:    d.Phase,
		Round:    d.Round,
	}

	if p, ok := d.Players[playerID]; ok && d.Phase != PhaseLobbyOpen {
		snap.Hand = p.Hand
	}

	switch d.Phase {
	case PhaseJudging, PhaseRoundFinished, PhaseGameOver:
		snap.RevealedCards = d.Subs.Reveal
	case PhaseSubmitting:
		snap.SubmittedPlayers = append([]string(nil), d.Subs.ByIndex...)
	}

	if d.Phase == PhaseSubmitting || d.Phase == PhaseJudging || d.Phase == PhaseRoundFinished {
		if idxs, ok := d.Subs.SubmittedByPlayer[playerID]; ok {
			snap.SelectedCards = idxs
		}
	}

	if d.CzarPick != nil {
		pick := *d.CzarPick
		snap.CzarPick = &pick
		if pick >= 0 && pick < len(d.Subs.ByIndex) {
			snap.Winner = d.Subs.ByIndex[pick]
		}
	}

	if d.Phase != PhaseLobbyOpen {
		snap.BlackCard = d.BlackCard
	}

	return snap
}

// SnapshotFor takes an atomic, read-locked snapshot for playerID.
func (l *Lobby) SnapshotFor(playerID string) ClientLobby {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotForUnsafe(playerID)
}
