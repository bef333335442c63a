package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Lm7452/UniEats/internal/types"
)

const defaultSendQueue = 64

type Option func(*Hub)

// WithTickets makes register require a ticket issued by t.
func WithTickets(t *Tickets) Option {
	return func(h *Hub) { h.tickets = t }
}

// WithSendQueue bounds the per-session outbound queue.
func WithSendQueue(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendQueue = n
		}
	}
}

// WithAllowedOrigins accepts upgrades from the listed browser origins as
// well as the hub's own host. "*" accepts any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Hub) {
		if len(origins) > 0 {
			h.upgrader.CheckOrigin = originChecker(origins)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// Hub owns the websocket sessions of this process and their groups.
type Hub struct {
	bus       Bus
	tickets   *Tickets
	log       *slog.Logger
	sendQueue int
	upgrader  websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*session]struct{}
	groups   map[Target]map[*session]struct{}
}

func NewHub(bus Bus, opts ...Option) *Hub {
	h := &Hub{
		bus:       bus,
		log:       slog.Default(),
		sendQueue: defaultSendQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[*session]struct{}),
		groups:   make(map[Target]map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes the hub to the bus. Events published before Start
// returns are not delivered by this hub.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, h.dispatch)
}

// Emit publishes ev to every hub on the bus.
func (h *Hub) Emit(ctx context.Context, ev Event) error {
	env, err := ev.Envelope()
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, env)
}

// ServeHTTP upgrades the request and runs the session until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	s := newSession(h, conn)
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	go s.writePump()
	s.readPump()
}

// Close drops every session.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		all = append(all, s)
	}
	h.mu.RUnlock()
	for _, s := range all {
		s.close()
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) GroupSize(t Target) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[t])
}

// dispatch delivers one envelope to the local sessions it addresses. Each
// session gets the frame once even when it sits in several target groups.
func (h *Hub) dispatch(env Envelope) {
	frame, err := json.Marshal(Frame{Type: string(env.Kind), Data: env.Data})
	if err != nil {
		h.log.Error("realtime: encode frame", "kind", env.Kind, "err", err)
		return
	}

	targets := make([]Target, 0, len(env.Targets)+1)
	targets = append(targets, env.Targets...)
	targets = append(targets, AdminsTarget)

	h.mu.RLock()
	seen := make(map[*session]struct{})
	recipients := make([]*session, 0)
	for _, t := range targets {
		for s := range h.groups[t] {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			recipients = append(recipients, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range recipients {
		s.enqueue(frame)
	}
}

var errBadRegister = errors.New("register requires userId and a valid role")

func (h *Hub) register(s *session, msg RegisterMessage) error {
	if msg.UserID == "" || !msg.Role.Valid() {
		return errBadRegister
	}
	if h.tickets != nil {
		actor, err := h.tickets.Verify(msg.Ticket)
		if err != nil {
			return err
		}
		if actor.UserID != msg.UserID || actor.Role != msg.Role {
			return ErrInvalidTicket
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.sessions[s]; !live {
		return errors.New("session closed")
	}
	h.leaveLocked(s)
	s.actor = types.Actor{UserID: msg.UserID, Role: msg.Role}
	s.targets = []Target{UserTarget(msg.UserID), RoleTarget(msg.Role)}
	for _, t := range s.targets {
		g, ok := h.groups[t]
		if !ok {
			g = make(map[*session]struct{})
			h.groups[t] = g
		}
		g[s] = struct{}{}
	}
	return nil
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s)
	delete(h.sessions, s)
}

func (h *Hub) leaveLocked(s *session) {
	for _, t := range s.targets {
		if g, ok := h.groups[t]; ok {
			delete(g, s)
			if len(g) == 0 {
				delete(h.groups, t)
			}
		}
	}
	s.targets = nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	anyOrigin := false
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch o {
		case "":
		case "*":
			anyOrigin = true
		default:
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || anyOrigin {
			return true
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
