package engine

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid config")
var ErrInvalidSide = errors.New("invalid side")
var ErrForbidden = errors.New("forbidden")
var ErrAlreadyStarted = errors.New("draft already started")
var ErrNotStarted = errors.New("draft not started")
var ErrAlreadyFinished = errors.New("draft already finished")
var ErrWrongTurn = errors.New("not this side's turn")
var ErrDuplicateItem = errors.New("item already used")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdMarkReady    CommandType = "MarkReady"
	CmdStartDraft   CommandType = "StartDraft"
	CmdSetTeamName  CommandType = "SetTeamName"
	CmdSubmitAction CommandType = "SubmitAction"
)

type Command struct {
	Type     CommandType
	Side     Side
	Role     Role // only StartDraft checks the caller's role
	Name     string
	ItemID   string
	ItemName string
	Abstain  bool
}

type EventType string

const (
	EvtReadyMarked      EventType = "ReadyMarked"
	EvtNameChanged      EventType = "NameChanged"
	EvtDraftStarted     EventType = "DraftStarted"
	EvtItemPicked       EventType = "ItemPicked"
	EvtItemBanned       EventType = "ItemBanned"
	EvtTurnAdvanced     EventType = "TurnAdvanced"
	EvtTurnAutoResolved EventType = "TurnAutoResolved"
	EvtDraftCompleted   EventType = "DraftCompleted"
	EvtTimerTicked      EventType = "TimerTicked"
)

type Event struct {
	Type   EventType
	Side   Side
	ItemID string
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Apply validates cmd against s and mutates s on success. The caller owns
// serialization: no two Apply/Tick calls on the same State may overlap.
func Apply(s *State, cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdMarkReady:
		if s.Phase != PhaseWaiting {
			return nil, ErrAlreadyStarted
		}
		if !validSide(cmd.Side) {
			return nil, ErrInvalidSide
		}
		s.Ready[cmd.Side] = true
		events := []Event{{Type: EvtReadyMarked, Side: cmd.Side}}
		if s.Ready[SideBlue] && s.Ready[SideRed] {
			events = append(events, start(s)...)
		}
		return events, nil

	case CmdStartDraft:
		if cmd.Role != RoleObserver {
			return nil, ErrForbidden
		}
		if s.Phase != PhaseWaiting {
			return nil, ErrAlreadyStarted
		}
		return start(s), nil

	case CmdSetTeamName:
		if s.Phase != PhaseWaiting {
			return nil, ErrAlreadyStarted
		}
		if !validSide(cmd.Side) {
			return nil, ErrInvalidSide
		}
		s.Teams[cmd.Side].Name = strings.TrimSpace(cmd.Name)
		return []Event{{Type: EvtNameChanged, Side: cmd.Side}}, nil

	case CmdSubmitAction:
		return submit(s, cmd)

	default:
		return nil, ErrUnsupportedCommand
	}
}

// start opens the draft without touching the ready flags; the observer's
// forced start and the both-sides-ready path share it.
func start(s *State) []Event {
	s.Phase = PhaseActive
	events := []Event{{Type: EvtDraftStarted}}
	if len(s.Sequence) == 0 {
		s.Phase = PhaseFinished
		s.Timer = Timer{}
		return append(events, Event{Type: EvtDraftCompleted})
	}
	s.Timer = Timer{Remaining: s.Config.TurnSeconds, Running: true}
	return events
}

func submit(s *State, cmd Command) ([]Event, error) {
	if !validSide(cmd.Side) {
		return nil, ErrInvalidSide
	}
	switch s.Phase {
	case PhaseWaiting:
		return nil, ErrNotStarted
	case PhaseFinished:
		return nil, ErrAlreadyFinished
	}

	step, done := CurrentStep(s)
	if done {
		// Phase says active but the sequence is spent; a logic bug, not bad input.
		return nil, fmt.Errorf("turn index %d out of range for sequence of %d", s.TurnIndex, len(s.Sequence))
	}
	if step.Side != cmd.Side {
		return nil, ErrWrongTurn
	}

	if cmd.Abstain {
		// Only a ban turn can be abstained; a pick turn has no such move.
		if step.Action != ActionBan {
			return nil, ErrWrongTurn
		}
		s.Teams[cmd.Side].Bans = append(s.Teams[cmd.Side].Bans, Selection{ItemName: "No Ban", Abstain: true})
		events := []Event{{Type: EvtItemBanned, Side: cmd.Side}}
		return append(events, advance(s)...), nil
	}

	if isUsed(s, cmd.ItemID) {
		return nil, ErrDuplicateItem
	}

	sel := Selection{ItemID: cmd.ItemID, ItemName: cmd.ItemName}
	var events []Event
	if step.Action == ActionBan {
		s.Teams[cmd.Side].Bans = append(s.Teams[cmd.Side].Bans, sel)
		events = []Event{{Type: EvtItemBanned, Side: cmd.Side, ItemID: cmd.ItemID}}
	} else {
		s.Teams[cmd.Side].Picks = append(s.Teams[cmd.Side].Picks, sel)
		events = []Event{{Type: EvtItemPicked, Side: cmd.Side, ItemID: cmd.ItemID}}
	}
	return append(events, advance(s)...), nil
}

// advance moves the turn pointer and either re-arms the timer for the next
// turn or closes the draft.
func advance(s *State) []Event {
	s.TurnIndex++
	if s.TurnIndex >= len(s.Sequence) {
		s.Phase = PhaseFinished
		s.Timer = Timer{}
		return []Event{{Type: EvtTurnAdvanced}, {Type: EvtDraftCompleted}}
	}
	s.Timer = Timer{Remaining: s.Config.TurnSeconds, Running: true}
	return []Event{{Type: EvtTurnAdvanced}}
}

// AutoPickFunc supplies the forced selection for a pick turn whose clock
// and reserve are both spent. used reports whether an item id is already
// taken in this room; ok is false when no item is available.
type AutoPickFunc func(used func(string) bool) (sel Selection, ok bool)

// Tick advances the countdown by one second: drain the turn clock, then the
// acting side's reserve pool, then force a default action. A nil event
// slice means the timer wasn't running and nothing changed.
func Tick(s *State, autoPick AutoPickFunc) ([]Event, error) {
	if s.Phase != PhaseActive || !s.Timer.Running {
		return nil, nil
	}

	step, done := CurrentStep(s)
	if done {
		return nil, fmt.Errorf("tick with turn index %d out of range for sequence of %d", s.TurnIndex, len(s.Sequence))
	}
	team := s.Teams[step.Side]

	if s.Timer.Remaining > 0 {
		s.Timer.Remaining--
		return []Event{{Type: EvtTimerTicked, Side: step.Side}}, nil
	}

	if team.ReserveRemaining > 0 {
		s.Timer.UsingReserve = true
		team.ReserveRemaining--
		return []Event{{Type: EvtTimerTicked, Side: step.Side}}, nil
	}

	// Both clocks spent: resolve the turn on the acting side's behalf.
	auto := []Event{{Type: EvtTurnAutoResolved, Side: step.Side}}

	if step.Action == ActionBan {
		events, err := submit(s, Command{Type: CmdSubmitAction, Side: step.Side, Abstain: true})
		if err != nil {
			return nil, fmt.Errorf("forced abstain: %w", err)
		}
		return append(auto, events...), nil
	}

	sel, ok := autoPick(func(id string) bool { return isUsed(s, id) })
	if !ok {
		// Nothing left to pick from; record the skip so history stays complete.
		team.Picks = append(team.Picks, Selection{Abstain: true})
		return append(auto, advance(s)...), nil
	}
	events, err := submit(s, Command{Type: CmdSubmitAction, Side: step.Side, ItemID: sel.ItemID, ItemName: sel.ItemName})
	if err != nil {
		return nil, fmt.Errorf("forced pick: %w", err)
	}
	return append(auto, events...), nil
}

func validSide(side Side) bool {
	return side == SideBlue || side == SideRed
}

// isUsed reports whether id is claimed by any non-abstain selection in the
// room, both sides, picks and bans alike.
func isUsed(s *State, id string) bool {
	for _, team := range s.Teams {
		for _, sel := range team.Picks {
			if !sel.Abstain && sel.ItemID == id {
				return true
			}
		}
		for _, sel := range team.Bans {
			if !sel.Abstain && sel.ItemID == id {
				return true
			}
		}
	}
	return false
}
