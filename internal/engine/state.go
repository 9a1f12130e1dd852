package engine

type Side string

const (
	SideBlue Side = "blue"
	SideRed  Side = "red"
)

// Role is the closed set of identities a bearer token can resolve to.
// RoleNone means the token matched nothing.
type Role string

const (
	RoleBlue     Role = "blue"
	RoleRed      Role = "red"
	RoleObserver Role = "observer"
	RoleNone     Role = ""
)

// TeamSide maps a role to the side it controls. Observers control no side.
func (r Role) TeamSide() (Side, bool) {
	switch r {
	case RoleBlue:
		return SideBlue, true
	case RoleRed:
		return SideRed, true
	default:
		return "", false
	}
}

type Action string

const (
	ActionBan  Action = "ban"
	ActionPick Action = "pick"
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

type TurnStep struct {
	Side   Side   `json:"side"`
	Action Action `json:"action"`
}

// Selection is one committed choice. Selections are append-only; once in a
// pick or ban list they are never edited or removed. An abstain carries no
// item id.
type Selection struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Abstain  bool   `json:"abstain,omitempty"`
}

type TeamState struct {
	Name             string      `json:"name"`
	Picks            []Selection `json:"picks"`
	Bans             []Selection `json:"bans"`
	ReserveRemaining int         `json:"reserveRemaining"`
}

type Timer struct {
	Remaining    int  `json:"remaining"`
	Running      bool `json:"running"`
	UsingReserve bool `json:"usingReserve"`
}

type Config struct {
	BanCount       int `json:"bans"`
	PickCount      int `json:"picks"`
	TurnSeconds    int `json:"timerSeconds"`
	ReserveSeconds int `json:"reserveSeconds"`
}

// DefaultConfig mirrors the defaults a bare room-creation request gets.
func DefaultConfig() Config {
	return Config{
		BanCount:       2,
		PickCount:      6,
		TurnSeconds:    40,
		ReserveSeconds: 60,
	}
}

// Upper bounds keep a room-creation request from allocating an absurd
// sequence; real drafts are an order of magnitude below them.
const (
	MaxBanCount  = 100
	MaxPickCount = 100
)

func (c Config) Validate() error {
	if c.BanCount < 0 || c.PickCount < 0 {
		return ErrInvalidConfig
	}
	if c.BanCount > MaxBanCount || c.PickCount > MaxPickCount {
		return ErrInvalidConfig
	}
	if c.TurnSeconds < 1 || c.ReserveSeconds < 0 {
		return ErrInvalidConfig
	}
	return nil
}

type State struct {
	Phase     Phase
	TurnIndex int
	Sequence  []TurnStep
	Teams     map[Side]*TeamState
	Ready     map[Side]bool
	Timer     Timer
	Config    Config
}

func NewState(cfg Config) State {
	return State{
		Phase:    PhaseWaiting,
		Sequence: GenerateSequence(cfg.BanCount, cfg.PickCount),
		Teams: map[Side]*TeamState{
			SideBlue: {Picks: []Selection{}, Bans: []Selection{}, ReserveRemaining: cfg.ReserveSeconds},
			SideRed:  {Picks: []Selection{}, Bans: []Selection{}, ReserveRemaining: cfg.ReserveSeconds},
		},
		Ready:  map[Side]bool{SideBlue: false, SideRed: false},
		Timer:  Timer{Remaining: cfg.TurnSeconds},
		Config: cfg,
	}
}

// CurrentStep returns the turn on the clock, or done=true once the
// sequence is exhausted.
func CurrentStep(s *State) (step TurnStep, done bool) {
	if s.TurnIndex >= len(s.Sequence) {
		return TurnStep{}, true
	}
	return s.Sequence[s.TurnIndex], false
}

// PublicState is the token-free view pushed to every subscriber. Shape
// follows what draft viewers render: the whole sequence, both teams, the
// live timer, and the room's config.
type PublicState struct {
	Started       bool       `json:"started"`
	BlueReady     bool       `json:"blueReady"`
	RedReady      bool       `json:"redReady"`
	Phase         Phase      `json:"phase"`
	CurrentSide   Side       `json:"currentSide,omitempty"`
	CurrentAction Action     `json:"currentAction,omitempty"`
	TurnIndex     int        `json:"turnIndex"`
	TotalTurns    int        `json:"totalTurns"`
	Sequence      []TurnStep `json:"sequence"`
	Blue          TeamState  `json:"blue"`
	Red           TeamState  `json:"red"`
	Timer         Timer      `json:"timer"`
	Config        Config     `json:"config"`
	Finished      bool       `json:"finished"`
}

// Snapshot copies s into a PublicState. The copy is deep enough that the
// caller can hand it to another goroutine while the room keeps mutating.
func Snapshot(s *State) PublicState {
	ps := PublicState{
		Started:    s.Phase != PhaseWaiting,
		BlueReady:  s.Ready[SideBlue],
		RedReady:   s.Ready[SideRed],
		Phase:      s.Phase,
		TurnIndex:  s.TurnIndex,
		TotalTurns: len(s.Sequence),
		Sequence:   s.Sequence,
		Blue:       copyTeam(s.Teams[SideBlue]),
		Red:        copyTeam(s.Teams[SideRed]),
		Timer:      s.Timer,
		Config:     s.Config,
		Finished:   s.Phase == PhaseFinished,
	}
	if step, done := CurrentStep(s); !done {
		ps.CurrentSide = step.Side
		ps.CurrentAction = step.Action
	}
	return ps
}

func copyTeam(t *TeamState) TeamState {
	out := *t
	out.Picks = append([]Selection(nil), t.Picks...)
	out.Bans = append([]Selection(nil), t.Bans...)
	return out
}
