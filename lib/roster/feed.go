package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/websocket"
	log "github.com/schollz/logger"
	"net/http"
	"net/url"
	"proxichat/core/lib/packet"
	"strings"
	"time"
)

// Operations of an Update.
const (
	OpJoin  = "join"
	OpLeave = "leave"
	OpMove  = "move"
	OpReset = "reset"
)

// Update is one change to the roster, sent as a JSON text message.
type Update struct {
	Op       string          `json:"op"`
	Identity packet.Identity `json:"identity"`
	Position *Vec3           `json:"position,omitempty"`
}

// Reply answers every Update.
type Reply struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Members int    `json:"members"`
}

var (
	ErrUnknownOp       = errors.New("unknown operation")
	ErrMissingPosition = errors.New("position is required")
	ErrNotMember       = errors.New("identity is not on the roster")
)

// Apply performs one Update on the roster.
func (r *Roster) Apply(u Update) error {
	switch u.Op {
	case OpJoin:
		r.Join(u.Identity, u.Position)
	case OpLeave:
		r.Leave(u.Identity)
	case OpMove:
		if u.Position == nil {
			return ErrMissingPosition
		}
		if !r.Move(u.Identity, *u.Position) {
			return fmt.Errorf("%w: %v", ErrNotMember, u.Identity)
		}
	case OpReset:
		r.Reset()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, u.Op)
	}
	return nil
}

// Feed is an http.Handler through which the game host streams roster updates
// over a WebSocket. Each text message holds one Update and is answered with a Reply.
// Invalid updates are answered with an error and leave the connection open.
type Feed struct {
	Roster *Roster
	// Token, if set, must be passed as the bearer token of the upgrade request.
	Token string

	upgrader websocket.Upgrader
}

const feedWriteTimeout = 5 * time.Second

func NewFeed(r *Roster, token string) *Feed {
	f := &Feed{
		Roster: r,
		Token:  token,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	f.upgrader.CheckOrigin = f.checkOrigin
	return f
}

// authorized checks the bearer token, or the token query parameter
// for browsers which cannot set headers on a WebSocket upgrade.
func (f *Feed) authorized(r *http.Request) bool {
	if f.Token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+f.Token ||
		r.URL.Query().Get("token") == f.Token
}

// checkOrigin accepts any origin once a token is required, since the token
// already gates the upgrade. Without a token only same-origin pages may connect.
func (f *Feed) checkOrigin(r *http.Request) bool {
	if f.Token != "" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("roster: failed to upgrade %v: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	log.Infof("roster: feed connected from %v", r.RemoteAddr)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Errorf("roster: feed from %v closed: %v", r.RemoteAddr, err)
			}
			return
		}
		reply := Reply{OK: true}
		if kind != websocket.TextMessage {
			err = errors.New("expected a text message")
		} else {
			var u Update
			if err = json.Unmarshal(data, &u); err == nil {
				err = f.Roster.Apply(u)
			}
			if err == nil {
				log.Debugf("roster: %v %v", u.Op, u.Identity)
			}
		}
		if err != nil {
			reply = Reply{Error: err.Error()}
		}
		reply.Members = f.Roster.Len()
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err = conn.WriteJSON(reply); err != nil {
			log.Errorf("roster: failed to reply to %v: %v", r.RemoteAddr, err)
			return
		}
	}
}
