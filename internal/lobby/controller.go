package lobby

import (
	"math/rand"
	"time"

	"github.com/holloway-dev/blankslate/internal/deck"
	"github.com/holloway-dev/blankslate/internal/lobbyerr"
)

// Join adds a brand new player or reattaches an existing one (rejoin). The
// first player ever added to an empty lobby becomes host, but New already
// seeds the host, so in practice this only assigns host if somehow none
// remains (defensive, mirrors §4.1's "assign host if none"). If the
// existing player was given a per-session secret, a rejoin must present a
// matching one.
func (l *Lobby) Join(playerID, name, secret string) error {
	l.mu.Lock()
	d := &l.data

	existing, alreadyPresent := d.Players[playerID]
	if !alreadyPresent && d.Phase != PhaseLobbyOpen {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindLobbyClosed)
	}
	if !alreadyPresent && len(d.Players) >= d.Settings.MaxPlayers {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindLobbyFull)
	}
	if alreadyPresent && existing.Secret != "" && existing.Secret != secret {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}

	firstJoin := !alreadyPresent
	if alreadyPresent {
		// Rejoin: cancel any pending disconnect timer before proceeding.
		l.cancelDisconnectTimer(playerID)
	} else {
		hasHost := false
		for _, p := range d.Players {
			if p.IsHost {
				hasHost = true
				break
			}
		}
		d.Players[playerID] = &Player{
			PlayerInfo: PlayerInfo{Name: name, IsHost: !hasHost},
			Secret:     secret,
		}
		d.CzarOrder = append([]string{playerID}, d.CzarOrder...)
	}
	useTickets := d.Settings.UseSessionTickets
	l.touch()
	l.mu.Unlock()

	if firstJoin {
		l.emit(PlayerJoinEvent{PlayerID: playerID, Name: name}, d.Round, d.Phase)
		evt := ClientLobbyEvent{Snapshot: l.SnapshotFor(playerID)}
		if useTickets {
			if t, ok := l.IssueTicket(playerID, secret); ok {
				evt.Ticket = t
			}
		}
		l.Bus.SendPrivate(playerID, evt)
	}
	return nil
}

// Leave removes playerID per the removal policy in §4.2.
func (l *Lobby) Leave(playerID string) error {
	l.mu.Lock()
	if _, ok := l.data.Players[playerID]; !ok {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	events := l.removePlayerUnsafe(playerID)
	l.touch()
	round, phase := l.data.Round, l.data.Phase
	l.mu.Unlock()

	for _, evt := range events {
		l.emit(evt, round, phase)
	}
	return nil
}

// Kick removes target at the host's request.
func (l *Lobby) Kick(byID, target string) error {
	l.mu.Lock()
	host, ok := l.data.Players[byID]
	if !ok || !host.IsHost {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	if byID == target {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	if _, ok := l.data.Players[target]; !ok {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}

	events := l.removePlayerUnsafe(target)
	l.touch()
	round, phase := l.data.Round, l.data.Phase
	l.mu.Unlock()

	l.Bus.SendPrivate(target, KickEvent{})
	for _, evt := range events {
		l.emit(evt, round, phase)
	}
	return nil
}

// removePlayerUnsafe applies the removal policy (§4.2) and returns the
// broadcast events to emit once the lock is released. Caller must hold the
// write lock.
func (l *Lobby) removePlayerUnsafe(pid string) []ServerEvent {
	d := &l.data
	wasHost := d.Players[pid].IsHost
	delete(d.Players, pid)

	newOrder := d.CzarOrder[:0:0]
	for _, id := range d.CzarOrder {
		if id != pid {
			newOrder = append(newOrder, id)
		}
	}
	d.CzarOrder = newOrder

	events := []ServerEvent{PlayerRemoveEvent{PlayerID: pid}}

	if d.Phase != PhaseLobbyOpen && d.Phase != PhaseGameOver {
		l.abortGameTaskUnsafe()
		d.Phase = PhaseGameOver
		events = append(events, GameOverEvent{})
	}

	if wasHost {
		for id, p := range d.Players {
			p.IsHost = true
			events = append(events, AssignHostEvent{PlayerID: id})
			break
		}
	}

	l.Bus.ForceClosePrivate(pid)
	return events
}

// UpdateSettings replaces settings wholesale, evicting non-self, non-host
// players if the new max_players shrinks below the current membership.
// Victims are taken in map iteration order; join order is not tracked, so
// which players are evicted is not defined.
func (l *Lobby) UpdateSettings(byID string, s Settings) error {
	l.mu.Lock()
	host, ok := l.data.Players[byID]
	if !ok || !host.IsHost {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	if l.data.Phase != PhaseLobbyOpen {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindLobbyClosed)
	}

	var events []ServerEvent
	if s.MaxPlayers > 0 {
		for len(l.data.Players) > s.MaxPlayers {
			victim := ""
			for id, p := range l.data.Players {
				if id != byID && !p.IsHost {
					victim = id
					break
				}
			}
			if victim == "" {
				break
			}
			l.Bus.SendPrivate(victim, KickEvent{})
			events = append(events, l.removePlayerUnsafe(victim)...)
		}
	}

	l.data.Settings = s
	l.touch()
	round, phase := l.data.Round, l.data.Phase
	l.mu.Unlock()

	for _, evt := range events {
		l.emit(evt, round, phase)
	}
	l.emit(UpdateSettingsEvent{Settings: s}, round, phase)
	return nil
}

// AddDeck fetches a deck by code, caches it, and recomputes the settings'
// deck list while preserving previously stored enabled flags.
func (l *Lobby) AddDeck(byID, code string, fetcher deck.Fetcher) error {
	l.mu.RLock()
	host, ok := l.data.Players[byID]
	phase := l.data.Phase
	l.mu.RUnlock()
	if !ok || !host.IsHost {
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	if phase != PhaseLobbyOpen {
		return lobbyerr.New(lobbyerr.KindLobbyClosed)
	}

	d, err := fetcher.Fetch(code)
	if err != nil {
		return lobbyerr.Newf(lobbyerr.KindUpstream, "%v", err)
	}
	if err := deck.Save(l.Cache, d); err != nil {
		return lobbyerr.Newf(lobbyerr.KindFileSystem, "%v", err)
	}

	return l.recomputeDecksUnsafe()
}

// FetchDecks refreshes every cached deck concurrently, keeping stale
// copies for any that fail to refetch.
func (l *Lobby) FetchDecks(byID string, fetcher deck.Fetcher) error {
	l.mu.RLock()
	host, ok := l.data.Players[byID]
	phase := l.data.Phase
	l.mu.RUnlock()
	if !ok || !host.IsHost {
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	if phase != PhaseLobbyOpen {
		return lobbyerr.New(lobbyerr.KindLobbyClosed)
	}

	if _, err := deck.UpdateAllCached(l.Cache, fetcher); err != nil {
		return lobbyerr.Newf(lobbyerr.KindDeck, "%v", err)
	}
	return l.recomputeDecksUnsafe()
}

// recomputeDecksUnsafe reloads deck metadata from cache, preserves enabled
// flags, stores the new list, and emits UpdateDecks.
func (l *Lobby) recomputeDecksUnsafe() error {
	all, err := deck.AllCached(l.Cache)
	if err != nil {
		return lobbyerr.Newf(lobbyerr.KindFileSystem, "%v", err)
	}

	l.mu.Lock()
	infos := deck.ToInfo(all, l.data.Settings.Decks)
	l.data.Settings.Decks = infos
	l.touch()
	round, phase := l.data.Round, l.data.Phase
	l.mu.Unlock()

	l.emit(UpdateDecksEvent{Decks: infos}, round, phase)
	return nil
}

// StartGame spawns the game task if preconditions hold.
func (l *Lobby) StartGame(byID string) error {
	l.mu.Lock()
	host, ok := l.data.Players[byID]
	if !ok || !host.IsHost {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	if l.data.Phase != PhaseLobbyOpen {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindLobbyStart)
	}
	if len(l.data.Players) < 2 {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindLobbyStart)
	}

	hasCards := false
	for _, di := range l.data.Settings.Decks {
		if di.Enabled && di.BlacksCount > 0 && di.WhitesCount > 0 {
			hasCards = true
			break
		}
	}
	if !hasCards {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindLobbyStart)
	}
	l.touch()
	l.mu.Unlock()

	l.startGameTask()
	return nil
}

// ResetGame returns a GameOver lobby back to LobbyOpen.
func (l *Lobby) ResetGame(byID string) error {
	l.mu.Lock()
	host, ok := l.data.Players[byID]
	if !ok || !host.IsHost {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}
	if l.data.Phase != PhaseGameOver {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindLobbyStart)
	}

	l.data.Round = 0
	l.data.Phase = PhaseLobbyOpen
	l.data.BlackCard = nil
	l.data.CzarPick = nil
	l.data.Subs = newSubmissions()
	for _, p := range l.data.Players {
		p.IsCzar = false
		p.Points = 0
		p.Hand = nil
	}
	l.touch()
	l.mu.Unlock()

	l.emit(LobbyResetEvent{}, 0, PhaseLobbyOpen)
	return nil
}

// SubmitCards records one non-czar player's submission.
func (l *Lobby) SubmitCards(playerID string, idxs []int) error {
	l.mu.Lock()
	d := &l.data
	if d.Phase != PhaseSubmitting {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCardSubmission)
	}
	p, ok := d.Players[playerID]
	if !ok || p.IsCzar {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCardSubmission)
	}
	if d.Subs.HasSubmitted(playerID) {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCardSubmission)
	}
	if d.BlackCard == nil || len(idxs) != d.BlackCard.Fields {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCardSubmission)
	}
	seen := make(map[int]bool, len(idxs))
	cards := make([]deck.WhiteCard, 0, len(idxs))
	for _, idx := range idxs {
		if idx < 0 || idx >= len(p.Hand) || seen[idx] {
			l.mu.Unlock()
			return lobbyerr.New(lobbyerr.KindCardSubmission)
		}
		seen[idx] = true
		cards = append(cards, p.Hand[idx])
	}

	d.Subs.Append(playerID, cards, idxs)
	l.touch()
	round, phase := d.Round, d.Phase
	l.mu.Unlock()

	l.submissionNotify.signal()
	l.emit(CardsSubmittedEvent{PlayerID: playerID}, round, phase)
	return nil
}

// SubmitCzarChoice records the czar's pick for the round.
func (l *Lobby) SubmitCzarChoice(playerID string, idx int) error {
	l.mu.Lock()
	d := &l.data
	if d.Phase != PhaseJudging {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCzarChoice)
	}
	p, ok := d.Players[playerID]
	if !ok || !p.IsCzar {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCzarChoice)
	}
	if d.CzarPick != nil {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCzarChoice)
	}
	if idx < 0 || idx >= len(d.Subs.Reveal) {
		l.mu.Unlock()
		return lobbyerr.New(lobbyerr.KindCzarChoice)
	}

	d.CzarPick = &idx
	l.touch()
	l.mu.Unlock()

	l.czarNotify.signal()
	return nil
}

// PlayerDisconnected starts the grace-period timer for playerID, unless one
// is already running.
func (l *Lobby) PlayerDisconnected(playerID string) error {
	l.mu.RLock()
	_, ok := l.data.Players[playerID]
	l.mu.RUnlock()
	if !ok {
		return lobbyerr.New(lobbyerr.KindUnauthorized)
	}

	l.disconnectMu.Lock()
	defer l.disconnectMu.Unlock()
	if _, active := l.disconnectTimers[playerID]; active {
		return nil
	}

	l.disconnectTimers[playerID] = time.AfterFunc(GracePeriod, func() {
		l.disconnectMu.Lock()
		delete(l.disconnectTimers, playerID)
		l.disconnectMu.Unlock()

		l.Bus.SendPrivate(playerID, TimeoutEvent{})
		_ = l.Leave(playerID)
	})
	return nil
}

func (l *Lobby) cancelDisconnectTimer(playerID string) {
	l.disconnectMu.Lock()
	defer l.disconnectMu.Unlock()
	if t, ok := l.disconnectTimers[playerID]; ok {
		t.Stop()
		delete(l.disconnectTimers, playerID)
	}
}

// shuffleRand is the permutation source used by the submission ledger's
// shuffle.
func shuffleRand(n int) int { return rand.Intn(n) }
