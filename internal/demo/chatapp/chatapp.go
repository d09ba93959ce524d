// Package chatapp wires the demo chat room's HTTP surface: bcrypt/JWT
// login, message history, and the WebSocket endpoint that joins a room's
// broadcast hub, generalized from a handlers package down to the three
// endpoints a chat demo needs.
package chatapp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"loom/internal/demo/auth"
	"loom/internal/demo/chatstore"
	"loom/internal/telemetry"
	"loom/internal/web"
	"loom/internal/websocket"
)

// validate caches struct reflection info across requests via a single
// shared instance.
var validate = validator.New()

// Handlers bundles the demo chat application's dependencies.
type Handlers struct {
	Auth      *auth.Service
	Store     *chatstore.Store
	Hub       *telemetry.Hub
	Logger    *slog.Logger
	PingEvery time.Duration
	Deflate   bool
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates a username/password pair and returns a JWT access
// token on success.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	rp := web.NewResponse(w)
	defer rp.Finish()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.SendError(rp, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		web.SendError(rp, http.StatusBadRequest, "invalid request")
		return
	}
	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		web.SendError(rp, http.StatusUnauthorized, "invalid credentials")
		return
	}
	rp.Header().Set("Content-Type", "application/json; charset=utf-8")
	body, _ := json.Marshal(loginResponse{Token: token})
	rp.Write(body)
}

// History returns the most recent messages in a room.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	rp := web.NewResponse(w)
	defer rp.Finish()

	room := roomFromHistoryPath(r.URL.Path)
	if room == "" {
		web.SendError(rp, http.StatusBadRequest, "missing room")
		return
	}
	msgs, err := h.Store.History(r.Context(), room, 100)
	if err != nil {
		h.Logger.Error("chatapp: load history failed", "room", room, "error", err)
		web.SendError(rp, http.StatusInternalServerError, "failed to load history")
		return
	}
	rp.Header().Set("Content-Type", "application/json; charset=utf-8")
	body, _ := json.Marshal(msgs)
	rp.Write(body)
}

// Room upgrades a request to a WebSocket connection and bridges it to the
// room's broadcast hub: inbound frames are persisted and rebroadcast,
// outbound frames are whatever the hub delivers for this room.
func (h *Handlers) Room(w http.ResponseWriter, r *http.Request) {
	room := roomFromWSPath(r.URL.Path)
	if room == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	claims, err := authenticate(r, h.Auth)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, websocket.UpgradeOptions{PermessageDeflate: h.Deflate})
	if err != nil {
		h.Logger.Warn("chatapp: websocket upgrade failed", "error", err)
		return
	}
	if h.PingEvery > 0 {
		conn.SetPingInterval(h.PingEvery)
	}
	defer conn.Close(1000, "")

	sub := h.Hub.Subscribe(room)
	defer h.Hub.Unsubscribe(room, sub)

	done := make(chan struct{})
	go h.pumpOutbound(conn, sub, done)
	h.pumpInbound(r, conn, room, claims.Username)
	close(done)
}

func (h *Handlers) pumpOutbound(conn *websocket.Conn, sub chan telemetry.ChatMessage, done chan struct{}) {
	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				return
			}
			body, _ := json.Marshal(msg)
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handlers) pumpInbound(r *http.Request, conn *websocket.Conn, room, author string) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := h.Store.Append(r.Context(), room, author, string(payload))
		if err != nil {
			h.Logger.Error("chatapp: persist message failed", "room", room, "error", err)
			continue
		}
		h.Hub.Broadcast(room, telemetry.ChatMessage{Room: msg.Room, Author: msg.Author, Body: msg.Body})
	}
}

func authenticate(r *http.Request, svc *auth.Service) (*auth.Claims, error) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		tok = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return svc.Verify(tok)
}

// roomFromWSPath extracts the room from "/ws/{room}".
func roomFromWSPath(p string) string {
	return trailingSegment(strings.TrimPrefix(p, "/ws/"))
}

// roomFromHistoryPath extracts the room from "/rooms/{room}/history".
func roomFromHistoryPath(p string) string {
	p = strings.TrimPrefix(p, "/rooms/")
	p = strings.TrimSuffix(p, "/history")
	return trailingSegment(p)
}

func trailingSegment(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" || strings.Contains(p, "/") {
		return ""
	}
	return p
}
