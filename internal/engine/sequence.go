package engine

// GenerateSequence builds the full turn order for a draft with the given
// ban and pick counts per team. It is deterministic: the same counts always
// produce the identical sequence.
//
// Bans come first, strictly alternating and opening with blue. Picks follow
// in snake order: blue, red, then same-side pairs that swap which side
// leads (B R | R B | B R | ...).
func GenerateSequence(banCount, pickCount int) []TurnStep {
	seq := make([]TurnStep, 0, 2*banCount+2*pickCount)

	for i := 0; i < 2*banCount; i++ {
		side := SideBlue
		if i%2 == 1 {
			side = SideRed
		}
		seq = append(seq, TurnStep{Side: side, Action: ActionBan})
	}

	for i := 0; i < 2*pickCount; i++ {
		side := SideRed
		if i%4 == 0 || i%4 == 3 {
			side = SideBlue
		}
		seq = append(seq, TurnStep{Side: side, Action: ActionPick})
	}

	return seq
}
