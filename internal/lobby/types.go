package lobby

import (
	"github.com/holloway-dev/blankslate/internal/deck"
)

// Phase is the lobby's coarse-grained state.
type Phase string

const (
	PhaseLobbyOpen     Phase = "LobbyOpen"
	PhaseSubmitting    Phase = "Submitting"
	PhaseJudging       Phase = "Judging"
	PhaseRoundFinished Phase = "RoundFinished"
	PhaseGameOver      Phase = "GameOver"
)

// TimeoutKind distinguishes a flat timeout from one scaled by player count.
type TimeoutKind string

const (
	TimeoutConstant TimeoutKind = "constant"
	TimeoutPerPlayer TimeoutKind = "per_player"
)

// Timeout is a possibly player-scaled time limit. A nil *Timeout means no
// timeout applies (wait indefinitely).
type Timeout struct {
	Kind TimeoutKind `json:"kind"`
	Secs int         `json:"secs"`
}

// Effective returns the concrete wait duration in seconds for a lobby of
// the given player count, and whether a timeout applies at all. A nil
// receiver means absent, per spec.md §3.
func (t *Timeout) Effective(playerCount int) (secs int, ok bool) {
	if t == nil {
		return 0, false
	}
	if t.Kind == TimeoutPerPlayer {
		return t.Secs * playerCount, true
	}
	return t.Secs, true
}

// Settings holds the host-configurable rules for a lobby. MaxRounds and
// MaxPoints are nil when unset, matching spec.md's "absent ⇒ no limit"
// semantics without an ambiguous zero value.
type Settings struct {
	MaxRounds         *int        `json:"max_rounds,omitempty"`
	MaxPoints         *int        `json:"max_points,omitempty"`
	MaxSubmittingTime *Timeout    `json:"max_submitting_time_secs,omitempty"`
	MaxJudgingTime    *Timeout    `json:"max_judging_time_secs,omitempty"`
	WaitTimeSecs      int         `json:"wait_time_secs"`
	MaxPlayers        int         `json:"max_players"`
	Decks             []deck.Info `json:"decks"`
	UseSessionTickets bool        `json:"use_session_tickets"`
}

// EndConditionReached implements the corrected end-condition check: round
// count and point count are independent checks, never cross-compared.
func (s Settings) EndConditionReached(round int, players map[string]*Player) bool {
	if s.MaxRounds != nil && round >= *s.MaxRounds {
		return true
	}
	if s.MaxPoints != nil {
		for _, p := range players {
			if p.Points >= *s.MaxPoints {
				return true
			}
		}
	}
	return false
}

// PlayerInfo is the public-facing half of a Player.
type PlayerInfo struct {
	Name    string `json:"name"`
	IsHost  bool   `json:"is_host"`
	IsCzar  bool   `json:"is_czar"`
	Points  int    `json:"points"`
}

// Player is one lobby member: public info plus a private hand.
type Player struct {
	PlayerInfo
	Hand []deck.WhiteCard `json:"-"`

	// Secret is the opaque per-session rejoin credential, empty if unused.
	Secret string `json:"-"`
}

// Submissions is the per-round ledger of revealed card groups aligned with
// submitter identity and each submitter's chosen hand indices.
type Submissions struct {
	Reveal             [][]deck.WhiteCard `json:"-"`
	ByIndex            []string           `json:"-"` // player id per reveal[i]
	SubmittedByPlayer  map[string][]int   `json:"-"` // player id -> hand indices used
}

func newSubmissions() *Submissions {
	return &Submissions{
		Reveal:            make([][]deck.WhiteCard, 0),
		ByIndex:           make([]string, 0),
		SubmittedByPlayer: make(map[string][]int),
	}
}

// HasSubmitted reports whether pid already appears in the ledger this
// round.
func (s *Submissions) HasSubmitted(pid string) bool {
	_, ok := s.SubmittedByPlayer[pid]
	return ok
}

// Append records one player's submission, keeping reveal/by_index/
// submitted_by_player in lockstep.
func (s *Submissions) Append(pid string, cards []deck.WhiteCard, idxs []int) {
	s.Reveal = append(s.Reveal, cards)
	s.ByIndex = append(s.ByIndex, pid)
	s.SubmittedByPlayer[pid] = idxs
}

// ShuffleTogether applies one random permutation to reveal and by_index,
// preserving their pairwise alignment while hiding submission order.
func (s *Submissions) ShuffleTogether(rnd func(n int) int) {
	n := len(s.Reveal)
	for i := n - 1; i > 0; i-- {
		j := rnd(i + 1)
		s.Reveal[i], s.Reveal[j] = s.Reveal[j], s.Reveal[i]
		s.ByIndex[i], s.ByIndex[j] = s.ByIndex[j], s.ByIndex[i]
	}
}

// ClientLobby is the per-viewer snapshot projection sent as a private
// ClientLobby event.
type ClientLobby struct {
	Players           map[string]PlayerInfo `json:"players"`
	Settings          Settings              `json:"settings"`
	Phase             Phase                 `json:"phase"`
	Round             int                   `json:"round"`
	Hand              []deck.WhiteCard      `json:"hand,omitempty"`
	RevealedCards     [][]deck.WhiteCard    `json:"revealed_cards,omitempty"`
	SubmittedPlayers  []string              `json:"submitted_players,omitempty"`
	SelectedCards     []int                 `json:"selected_cards,omitempty"`
	CzarPick          *int                  `json:"czar_pick,omitempty"`
	Winner            string                `json:"winner,omitempty"`
	BlackCard         *deck.BlackCard       `json:"black_card,omitempty"`
}
