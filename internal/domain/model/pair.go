package model

import "fmt"

// Pair is an unordered user pair normalized so that Low < High.
type Pair struct {
	Low  int64
	High int64
}

func NewPair(a, b int64) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

func (p Pair) Contains(userID int64) bool {
	return p.Low == userID || p.High == userID
}

// Other returns the member of the pair that is not userID.
func (p Pair) Other(userID int64) int64 {
	if p.Low == userID {
		return p.High
	}
	return p.Low
}

func (p Pair) String() string {
	return fmt.Sprintf("%d:%d", p.Low, p.High)
}

type PairState int

const (
	PairStateNone PairState = iota
	PairStateLowOnly
	PairStateHighOnly
	PairStateMutual
)

// PairStateFrom derives the pair state from the two directed edges.
func PairStateFrom(lowLikesHigh, highLikesLow bool) PairState {
	switch {
	case lowLikesHigh && highLikesLow:
		return PairStateMutual
	case lowLikesHigh:
		return PairStateLowOnly
	case highLikesLow:
		return PairStateHighOnly
	default:
		return PairStateNone
	}
}

func (s PairState) String() string {
	switch s {
	case PairStateLowOnly:
		return "low_only"
	case PairStateHighOnly:
		return "high_only"
	case PairStateMutual:
		return "mutual"
	default:
		return "none"
	}
}
