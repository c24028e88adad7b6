package lobby

import (
	"context"
	"time"

	"github.com/holloway-dev/blankslate/internal/deck"
)

// startGameTask spawns the one game task this lobby may run at a time.
func (l *Lobby) startGameTask() {
	ctx, cancel := context.WithCancel(context.Background())

	l.gameMu.Lock()
	l.gameTask = cancel
	l.gameMu.Unlock()

	go l.runGame(ctx)
}

// abortGameTaskUnsafe cancels the in-flight game task, if any. Caller must
// hold the write lock on LobbyData (the task itself never holds it across
// a suspension point, so this never deadlocks).
func (l *Lobby) abortGameTaskUnsafe() {
	l.gameMu.Lock()
	defer l.gameMu.Unlock()
	if l.gameTask != nil {
		l.gameTask()
		l.gameTask = nil
	}
}

// runGame is the long-running per-game task: reset -> deal -> czar pick ->
// submitting -> judging -> pause -> repeat, until an end condition or
// cancellation.
func (l *Lobby) runGame(ctx context.Context) {
	l.resetRound(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		l.mu.Lock()
		l.data.Round++
		round := l.data.Round
		l.mu.Unlock()

		czarID, black, ok := l.assignCzar()
		if !ok {
			l.finishGame()
			return
		}
		l.emit(StartRoundEvent{CzarID: czarID, BlackCard: black, Round: round}, round, PhaseSubmitting)

		if ctx.Err() != nil {
			return
		}

		nonEmpty := l.submittingPhase(ctx)
		if ctx.Err() != nil {
			return
		}

		if !nonEmpty {
			l.mu.Lock()
			l.data.Phase = PhaseRoundFinished
			phase := l.data.Phase
			l.mu.Unlock()
			l.emit(RoundSkipEvent{}, round, phase)
		} else {
			l.judgingPhase(ctx, round)
			if ctx.Err() != nil {
				return
			}
		}

		l.mu.RLock()
		wait := time.Duration(l.data.Settings.WaitTimeSecs) * time.Second
		l.mu.RUnlock()
		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		l.mu.RLock()
		done := l.data.Settings.EndConditionReached(l.data.Round, l.data.Players)
		l.mu.RUnlock()
		if done {
			l.finishGame()
			return
		}

		l.resetRound(ctx)
	}
}

// finishGame transitions the lobby to GameOver and emits it exactly once.
func (l *Lobby) finishGame() {
	l.mu.Lock()
	l.data.Phase = PhaseGameOver
	round := l.data.Round
	l.mu.Unlock()

	l.gameMu.Lock()
	l.gameTask = nil
	l.gameMu.Unlock()

	l.emit(GameOverEvent{}, round, PhaseGameOver)
}

// resetRound discards spent cards, clears the ledger/czar pick/black card,
// refills every hand to HandSize, and privately pushes each refilled hand.
func (l *Lobby) resetRound(ctx context.Context) {
	l.mu.Lock()
	d := &l.data

	for pid, idxs := range d.Subs.SubmittedByPlayer {
		p, ok := d.Players[pid]
		if !ok {
			continue
		}
		discard := make(map[int]bool, len(idxs))
		for _, i := range idxs {
			discard[i] = true
		}
		kept := p.Hand[:0:0]
		for i, c := range p.Hand {
			if !discard[i] {
				kept = append(kept, c)
			}
		}
		p.Hand = kept
	}

	d.Subs = newSubmissions()
	d.CzarPick = nil
	d.BlackCard = nil

	needs := make(map[string]int, len(d.Players))
	for pid, p := range d.Players {
		if n := HandSize - len(p.Hand); n > 0 {
			needs[pid] = n
		}
	}

	codes := make([]string, 0, len(d.Settings.Decks))
	for _, di := range d.Settings.Decks {
		if di.Enabled {
			codes = append(codes, di.DeckCode)
		}
	}
	cacheDir := l.Cache
	l.mu.Unlock()

	if len(needs) == 0 {
		return
	}

	decks, err := deck.EnabledDecks(cacheDir, codes)
	if err != nil || len(decks) == 0 {
		return
	}

	type fill struct {
		pid   string
		cards []deck.WhiteCard
	}
	fills := make([]fill, 0, len(needs))
	for pid, n := range needs {
		cards, err := deck.ChooseRandomWhite(decks, n)
		if err != nil {
			continue
		}
		fills = append(fills, fill{pid: pid, cards: cards})
	}

	l.mu.Lock()
	for _, f := range fills {
		if p, ok := l.data.Players[f.pid]; ok {
			p.Hand = append(p.Hand, f.cards...)
		}
	}
	l.touch()
	l.mu.Unlock()

	for _, f := range fills {
		if ctx.Err() != nil {
			return
		}
		p, ok := l.data.Players[f.pid]
		if !ok {
			continue
		}
		l.Bus.SendPrivate(f.pid, UpdateHandEvent{Hand: p.Hand})
	}
}

// assignCzar pops the back of the czar queue, clears every other player's
// is_czar flag, draws a fresh black card, and pushes the new czar to the
// front of the queue. Returns ok=false if there are no players left.
func (l *Lobby) assignCzar() (czarID string, black deck.BlackCard, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := &l.data

	if len(d.CzarOrder) == 0 {
		return "", deck.BlackCard{}, false
	}

	czarID = d.CzarOrder[len(d.CzarOrder)-1]
	d.CzarOrder = d.CzarOrder[:len(d.CzarOrder)-1]
	d.CzarOrder = append([]string{czarID}, d.CzarOrder...)

	for id, p := range d.Players {
		p.IsCzar = id == czarID
	}

	codes := make([]string, 0, len(d.Settings.Decks))
	for _, di := range d.Settings.Decks {
		if di.Enabled {
			codes = append(codes, di.DeckCode)
		}
	}
	decks, err := deck.EnabledDecks(l.Cache, codes)
	if err != nil || len(decks) == 0 {
		return czarID, deck.BlackCard{}, false
	}
	card, err := deck.ChooseRandomBlack(decks)
	if err != nil {
		return czarID, deck.BlackCard{}, false
	}

	d.BlackCard = &card
	d.Phase = PhaseSubmitting
	return czarID, card, true
}

// submittingPhase waits for every non-czar player to submit or for the
// configured timeout, then applies the ledger's anonymizing shuffle.
// Returns false if no one submitted before the phase ended.
func (l *Lobby) submittingPhase(ctx context.Context) bool {
	l.mu.RLock()
	playerCount := len(l.data.Players)
	timeoutSecs, hasTimeout := l.data.Settings.MaxSubmittingTime.Effective(playerCount)
	l.mu.RUnlock()

	var deadline <-chan time.Time
	if hasTimeout {
		t := time.NewTimer(time.Duration(timeoutSecs) * time.Second)
		defer t.Stop()
		deadline = t.C
	}

	for {
		if l.allNonCzarSubmitted() {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			goto doneWaiting
		case <-l.submissionNotify:
			// re-validate against current lobby state, loop again
		}
	}
doneWaiting:

	l.mu.Lock()
	nonEmpty := len(l.data.Subs.Reveal) > 0
	if nonEmpty {
		l.data.Subs.ShuffleTogether(shuffleRand)
		l.data.Phase = PhaseJudging
	}
	l.mu.Unlock()
	return nonEmpty
}

func (l *Lobby) allNonCzarSubmitted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d := &l.data
	for pid, p := range d.Players {
		if p.IsCzar {
			continue
		}
		if !d.Subs.HasSubmitted(pid) {
			return false
		}
	}
	return true
}

// judgingPhase broadcasts the shuffled reveal, waits for the czar's pick or
// a timeout, and scores or skips accordingly.
func (l *Lobby) judgingPhase(ctx context.Context, round int) {
	l.mu.RLock()
	reveal := l.data.Subs.Reveal
	timeoutSecs, hasTimeout := l.data.Settings.MaxJudgingTime.Effective(len(l.data.Players))
	l.mu.RUnlock()

	l.emit(RevealCardsEvent{Reveal: reveal}, round, PhaseJudging)

	var deadline <-chan time.Time
	if hasTimeout {
		t := time.NewTimer(time.Duration(timeoutSecs) * time.Second)
		defer t.Stop()
		deadline = t.C
	}

	for {
		l.mu.RLock()
		picked := l.data.CzarPick != nil
		l.mu.RUnlock()
		if picked {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			l.mu.Lock()
			l.data.Phase = PhaseRoundFinished
			l.mu.Unlock()
			l.emit(RoundSkipEvent{}, round, PhaseRoundFinished)
			return
		case <-l.czarNotify:
		}
	}

	l.mu.Lock()
	pick := *l.data.CzarPick
	winner := l.data.Subs.ByIndex[pick]
	if p, ok := l.data.Players[winner]; ok {
		p.Points++
	}
	l.data.Phase = PhaseRoundFinished
	l.mu.Unlock()

	l.emit(RoundResultEvent{PlayerID: winner, WinningCardIndex: pick}, round, PhaseRoundFinished)
}
