package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holloway-dev/blankslate/internal/deck"
	"github.com/holloway-dev/blankslate/internal/lobby"
	"github.com/holloway-dev/blankslate/internal/lobbyerr"
	"github.com/holloway-dev/blankslate/internal/middleware"
)

// readTimeout bounds how long a single connection may stay silent before
// the handler treats it as disconnected.
const readTimeout = lobby.TimeoutInterval

// LobbyWSHandler upgrades GET /ws/{lobby_id} to a bidirectional JSON event
// stream and drives one player's session against the lobby controller.
func LobbyWSHandler(store *lobby.Store, fetcher deck.Fetcher, log *logrus.Logger, allowedOrigin string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbyID, err := parseLobbyID(r.URL.Path)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		l, ok := store.Get(lobbyID)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		var opts *websocket.AcceptOptions
		if allowedOrigin != "" {
			opts = &websocket.AcceptOptions{OriginPatterns: []string{allowedOrigin}}
		}
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.WithError(err).Warn("websocket accept failed")
			return
		}

		session := &wsSession{
			conn:       conn,
			lobby:      l,
			fetcher:    fetcher,
			log:        log,
			remoteAddr: r.RemoteAddr,
		}
		session.run(r.Context())
	}
}

func parseLobbyID(path string) (uuid.UUID, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 {
		return uuid.UUID{}, lobbyerr.New(lobbyerr.KindLobbyNotFound)
	}
	return uuid.Parse(parts[len(parts)-1])
}

type wsSession struct {
	conn    *websocket.Conn
	lobby   *lobby.Lobby
	fetcher deck.Fetcher
	log     *logrus.Logger

	remoteAddr string
	playerID   string
}

// run performs the join handshake, then pumps broadcast/private events out
// and client messages in until the connection closes.
func (s *wsSession) run(ctx context.Context) {
	var disconnectErr error
	defer s.conn.CloseNow()
	defer func() {
		middleware.LogWebSocketDisconnect(s.log, s.remoteAddr, s.lobby.ID.String(), s.playerID, disconnectErr)
	}()

	handshakeCtx, cancel := context.WithTimeout(ctx, lobby.GracePeriod)
	cmd, err := s.readClientEvent(handshakeCtx)
	cancel()
	if err != nil {
		disconnectErr = err
		s.conn.Close(websocket.StatusPolicyViolation, "join handshake required")
		return
	}
	join, ok := cmd.(lobby.JoinLobbyCmd)
	if !ok {
		s.conn.Close(websocket.StatusPolicyViolation, "join handshake required")
		return
	}

	s.playerID = join.ID
	secret := join.Secret
	if join.Ticket != "" {
		if pid, sec, ok := s.lobby.ResolveTicket(join.Ticket); ok {
			s.playerID = pid
			secret = sec
		}
	}
	if err := s.lobby.Join(s.playerID, join.Name, secret); err != nil {
		disconnectErr = err
		s.writeError(ctx, err)
		s.conn.Close(websocket.StatusPolicyViolation, "join failed")
		return
	}
	middleware.LogWebSocketConnect(s.log, s.remoteAddr, s.lobby.ID.String(), s.playerID)

	broadcastEvents, lag, unsubscribe := s.lobby.Bus.Subscribe()
	defer unsubscribe()
	privateEvents := s.lobby.Bus.OpenPrivate(s.playerID)

	readCtx, readCancel := context.WithCancel(ctx)
	defer readCancel()
	incoming := make(chan lobby.ClientEvent)
	go s.readPump(readCtx, incoming)

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-broadcastEvents:
			if !ok {
				return
			}
			s.writeServerEvent(ctx, evt)

		case n := <-lag:
			s.log.WithFields(logrus.Fields{"player_id": s.playerID, "dropped": n}).Warn("ws: broadcast lag")

		case evt, ok := <-privateEvents:
			if !ok {
				return
			}
			s.writePrivateEvent(ctx, evt)
			if _, isKick := evt.(lobby.KickEvent); isKick {
				return
			}

		case cmd, ok := <-incoming:
			if !ok {
				_ = s.lobby.PlayerDisconnected(s.playerID)
				return
			}
			s.dispatch(ctx, cmd)
		}
	}
}

func (s *wsSession) readPump(ctx context.Context, out chan<- lobby.ClientEvent) {
	defer close(out)
	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		evt, err := s.readClientEvent(readCtx)
		cancel()
		if err != nil {
			return
		}
		select {
		case out <- evt:
		case <-ctx.Done():
			return
		}
	}
}

func (s *wsSession) readClientEvent(ctx context.Context) (lobby.ClientEvent, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return lobby.UnmarshalClientEvent(data)
}

func (s *wsSession) dispatch(ctx context.Context, cmd lobby.ClientEvent) {
	var err error
	switch c := cmd.(type) {
	case lobby.JoinLobbyCmd:
		id, secret := c.ID, c.Secret
		if c.Ticket != "" {
			if pid, sec, ok := s.lobby.ResolveTicket(c.Ticket); ok {
				id, secret = pid, sec
			}
		}
		err = s.lobby.Join(id, c.Name, secret)
	case lobby.UpdateSettingsCmd:
		err = s.lobby.UpdateSettings(s.playerID, c.Settings)
	case lobby.AddDeckCmd:
		err = s.lobby.AddDeck(s.playerID, c.Code, s.fetcher)
	case lobby.FetchDecksCmd:
		err = s.lobby.FetchDecks(s.playerID, s.fetcher)
	case lobby.KickCmd:
		err = s.lobby.Kick(s.playerID, c.Kicked)
	case lobby.EndGameCmd:
		err = s.lobby.ResetGame(s.playerID)
	case lobby.StartRoundCmd:
		err = s.lobby.StartGame(s.playerID)
	case lobby.RestartRoundCmd:
		err = s.lobby.ResetGame(s.playerID)
	case lobby.SubmitOwnCardsCmd:
		err = s.lobby.SubmitCards(s.playerID, c.Indexes)
	case lobby.CzarPickCmd:
		err = s.lobby.SubmitCzarChoice(s.playerID, c.Index)
	case lobby.LeaveLobbyCmd:
		err = s.lobby.Leave(s.playerID)
	}
	if err != nil {
		s.writeError(ctx, err)
	}
}

func (s *wsSession) writeServerEvent(ctx context.Context, evt lobby.ServerEvent) {
	data, err := lobby.MarshalServerEvent(evt)
	if err != nil {
		s.log.WithError(err).Warn("ws: marshal server event failed")
		return
	}
	_ = s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsSession) writePrivateEvent(ctx context.Context, evt lobby.PrivateServerEvent) {
	data, err := lobby.MarshalPrivateEvent(evt)
	if err != nil {
		s.log.WithError(err).Warn("ws: marshal private event failed")
		return
	}
	_ = s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsSession) writeError(ctx context.Context, err error) {
	lerr, ok := lobbyerr.As(err)
	if !ok {
		lerr = lobbyerr.New(lobbyerr.KindJSON)
	}
	s.writePrivateEvent(ctx, lobby.ErrorEvent{Err: lerr})
}
