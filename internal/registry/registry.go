// Package registry owns the process-wide room table. A single goroutine
// serializes creation, lookup, and eviction, so the table needs no lock.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hexdraft/draft-server/internal/catalog"
	"github.com/hexdraft/draft-server/internal/engine"
	"github.com/hexdraft/draft-server/internal/room"
)

const (
	DefaultTTL           = 20 * time.Minute
	DefaultSweepInterval = 5 * time.Minute

	roomIDLength = 8
	tokenLength  = 12
)

type Msg interface{ isRegistryMsg() }

type CreateRoom struct {
	Config engine.Config
	Reply  chan CreateReply
}

type CreateReply struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

type RemoveRoom struct{ ID string }

type ShutdownRegistry struct{}

// sweepNow forces an eviction pass; tests use it instead of waiting out the
// sweep ticker.
type sweepNow struct{}

func (CreateRoom) isRegistryMsg()       {}
func (GetRoom) isRegistryMsg()          {}
func (RemoveRoom) isRegistryMsg()       {}
func (ShutdownRegistry) isRegistryMsg() {}
func (sweepNow) isRegistryMsg()         {}

type Options struct {
	Clock         clockwork.Clock
	Catalog       catalog.Provider
	Logger        *zap.Logger
	TTL           time.Duration
	SweepInterval time.Duration
}

type Registry struct {
	inbox chan Msg
	rooms map[string]*room.Room

	clock   clockwork.Clock
	catalog catalog.Provider
	ttl     time.Duration
	sweep   time.Duration

	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewStatic()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(parent)
	g := &Registry{
		inbox:   make(chan Msg, 64),
		rooms:   make(map[string]*room.Room),
		clock:   opts.Clock,
		catalog: opts.Catalog,
		ttl:     opts.TTL,
		sweep:   opts.SweepInterval,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go g.loop()
	return g
}

func (g *Registry) Inbox() chan<- Msg { return g.inbox }

func (g *Registry) loop() {
	ticker := g.clock.NewTicker(g.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case <-ticker.Chan():
			g.evictIdle()

		case m := <-g.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- g.create(msg.Config)

			case GetRoom:
				rm := g.rooms[msg.ID]
				if rm != nil {
					rm.Touch()
				}
				msg.Reply <- rm // may be nil

			case RemoveRoom:
				g.remove(msg.ID)

			case sweepNow:
				g.evictIdle()

			case ShutdownRegistry:
				g.shutdown()
				return
			}
		}
	}
}

func (g *Registry) create(cfg engine.Config) CreateReply {
	if err := cfg.Validate(); err != nil {
		return CreateReply{Err: err}
	}

	var id string
	for {
		id = newID()
		if _, taken := g.rooms[id]; !taken {
			break
		}
	}

	tokens := room.Tokens{
		Blue:     newToken(),
		Red:      newToken(),
		Observer: newToken(),
	}
	rm := room.New(g.ctx, id, tokens, cfg, room.Options{
		Clock:   g.clock,
		Catalog: g.catalog,
		Logger:  g.logger,
	})
	g.rooms[id] = rm

	g.logger.Info("room created",
		zap.String("room_id", id),
		zap.Int("bans", cfg.BanCount),
		zap.Int("picks", cfg.PickCount))
	return CreateReply{Room: rm}
}

func (g *Registry) remove(id string) {
	rm := g.rooms[id]
	if rm == nil {
		return
	}
	delete(g.rooms, id)
	select {
	case rm.Inbox() <- room.Shutdown{}:
	case <-rm.Done():
	}
}

// evictIdle drops rooms nobody has touched within the TTL, closing their
// subscribers. Advisory cleanup: it only bounds memory, correctness never
// depends on it.
func (g *Registry) evictIdle() {
	cutoff := g.clock.Now().Add(-g.ttl)
	for id, rm := range g.rooms {
		if rm.LastActive().Before(cutoff) {
			g.logger.Info("evicting idle room", zap.String("room_id", id))
			g.remove(id)
		}
	}
}

func (g *Registry) shutdown() {
	for id := range g.rooms {
		g.remove(id)
	}
	g.cancel()
}

// newID mints a short room identifier, a UUID prefix like the tokens.
func newID() string {
	return compactUUID()[:roomIDLength]
}

func newToken() string {
	return compactUUID()[:tokenLength]
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
