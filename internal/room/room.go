// Package room runs one draft per goroutine. All reads and writes of a
// room's state funnel through its inbox, so mutations, timer ticks, and
// subscriber churn are serialized without locks.
package room

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hexdraft/draft-server/internal/catalog"
	"github.com/hexdraft/draft-server/internal/engine"
)

// Tokens holds the three bearer tokens minted at room creation. They are
// immutable; resolving one to a role is a pure lookup.
type Tokens struct {
	Blue     string `json:"blue"`
	Red      string `json:"red"`
	Observer string `json:"observer"`
}

func (t Tokens) Resolve(token string) engine.Role {
	if token == "" {
		return engine.RoleNone
	}
	switch token {
	case t.Blue:
		return engine.RoleBlue
	case t.Red:
		return engine.RoleRed
	case t.Observer:
		return engine.RoleObserver
	}
	return engine.RoleNone
}

type Msg interface{ isRoomMsg() }

// Join registers a subscriber; the room immediately pushes the current
// snapshot to its outbox.
type Join struct {
	ClientID string
	Outbox   chan Snapshot
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

// FromClient carries one mutation. Reply, if non-nil, receives the engine's
// verdict; it must be buffered.
type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type Snapshot struct {
	Version int
	State   engine.PublicState
}

type View struct {
	Version     int
	NumClients  int
	TimerActive bool
	State       engine.PublicState
}

type Options struct {
	Clock   clockwork.Clock
	Catalog catalog.Provider
	Logger  *zap.Logger
	Rand    *rand.Rand
}

type Room struct {
	ID     string
	Tokens Tokens

	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot

	clock    clockwork.Clock
	ticker   clockwork.Ticker
	autoPick engine.AutoPickFunc

	lastActive atomic.Int64 // unix nanos

	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, id string, tokens Tokens, cfg engine.Config, opts Options) *Room {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewStatic()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		ID:       id,
		Tokens:   tokens,
		inbox:    make(chan Msg, 64),
		state:    engine.NewState(cfg),
		clients:  make(map[string]chan Snapshot),
		clock:    opts.Clock,
		autoPick: autoPicker(opts.Catalog, opts.Rand),
		logger:   opts.Logger.With(zap.String("room_id", id)),
		ctx:      ctx,
		cancel:   cancel,
	}
	r.Touch()

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room has shut down; senders should select on it
// so they never block on an inbox nobody drains.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

// Touch refreshes the activity timestamp. The registry calls it on lookup;
// the loop calls it on every message.
func (r *Room) Touch() {
	r.lastActive.Store(r.clock.Now().UnixNano())
}

func (r *Room) LastActive() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

func (r *Room) loop() {
	for {
		var tickCh <-chan time.Time
		if r.ticker != nil {
			tickCh = r.ticker.Chan()
		}

		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-tickCh:
			r.Touch()
			r.handleTick()

		case m := <-r.inbox:
			r.Touch()
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = msg.Outbox
				r.send(msg.ClientID, msg.Outbox,
					Snapshot{Version: r.version, State: engine.Snapshot(&r.state)})

			case Leave:
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
				}

			case FromClient:
				events, err := engine.Apply(&r.state, msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- err
				}
				if err != nil {
					break
				}
				r.afterEvents(events)

			case GetState:
				msg.Reply <- View{
					Version:     r.version,
					NumClients:  len(r.clients),
					TimerActive: r.ticker != nil,
					State:       engine.Snapshot(&r.state),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleTick() {
	events, err := engine.Tick(&r.state, r.autoPick)
	if err != nil {
		// Tick errors mean a broken invariant, not bad client input.
		r.logger.Error("tick failed", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}
	r.afterEvents(events)
}

// afterEvents manages the ticker lifecycle and pushes the new snapshot.
func (r *Room) afterEvents(events []engine.Event) {
	if engine.ContainsEvent(events, engine.EvtDraftStarted) {
		r.startTicker()
	}
	if engine.ContainsEvent(events, engine.EvtDraftCompleted) {
		r.stopTicker()
	}
	if engine.ContainsEvent(events, engine.EvtTurnAutoResolved) {
		r.logger.Info("turn auto-resolved",
			zap.Int("turn", r.state.TurnIndex-1))
	}
	r.version++
	r.broadcast()
}

func (r *Room) startTicker() {
	if r.ticker != nil {
		return
	}
	r.ticker = r.clock.NewTicker(time.Second)
}

// stopTicker is idempotent; eviction, completion, and shutdown all call it.
func (r *Room) stopTicker() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
}

func (r *Room) broadcast() {
	snap := Snapshot{Version: r.version, State: engine.Snapshot(&r.state)}
	for id, ch := range r.clients {
		r.send(id, ch, snap)
	}
}

// send delivers a snapshot without blocking. A subscriber whose channel is
// full is treated as gone and dropped in the same pass.
func (r *Room) send(id string, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
	default:
		close(ch)
		delete(r.clients, id)
	}
}

func (r *Room) shutdown() {
	r.stopTicker()
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}
