package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	SeatRows    = "ABCDE"
	SeatColumns = 5
	SeatCount   = len(SeatRows) * SeatColumns
)

// SeatLabel is a seat position such as "B3". Canonical labels are upper case.
type SeatLabel string

var allSeats = func() []SeatLabel {
	seats := make([]SeatLabel, 0, SeatCount)
	for _, row := range SeatRows {
		for col := 1; col <= SeatColumns; col++ {
			seats = append(seats, SeatLabel(string(row)+string(rune('0'+col))))
		}
	}
	return seats
}()

// AllSeats returns every seat label in row-major order (A1..A5, B1..B5, ...).
func AllSeats() []SeatLabel {
	out := make([]SeatLabel, len(allSeats))
	copy(out, allSeats)
	return out
}

// IsValidSeatLabel is a purely syntactic check and is case sensitive.
func IsValidSeatLabel(label string) bool {
	if len(label) != 2 {
		return false
	}
	return strings.IndexByte(SeatRows, label[0]) >= 0 && label[1] >= '1' && label[1] <= '0'+SeatColumns
}

// Index is the row-major position of the label, or -1 when it is not a valid label.
func (l SeatLabel) Index() int {
	if !IsValidSeatLabel(string(l)) {
		return -1
	}
	row := strings.IndexByte(SeatRows, l[0])
	return row*SeatColumns + int(l[1]-'1')
}

// Column is the ledger column holding this seat.
func (l SeatLabel) Column() string {
	return strings.ToLower(string(l))
}

// ParseSeatSelection normalises raw user input such as "b3 B4" into labels,
// preserving input order.
func ParseSeatSelection(input string) ([]SeatLabel, error) {
	fields := strings.Fields(input)
	seats := make([]SeatLabel, 0, len(fields))
	for _, f := range fields {
		seats = append(seats, SeatLabel(strings.ToUpper(f)))
	}
	if err := ValidateSelection(seats); err != nil {
		return nil, err
	}
	return seats, nil
}

// ValidateSelection rejects empty selections, malformed labels and duplicates.
func ValidateSelection(seats []SeatLabel) error {
	if len(seats) == 0 {
		return errors.Wrap(ErrInvalidSeatSelection, "no seats selected")
	}
	seen := make(map[SeatLabel]struct{}, len(seats))
	for _, s := range seats {
		if !IsValidSeatLabel(string(s)) {
			return errors.Wrapf(ErrInvalidSeatSelection, "seat %q is out of range", string(s))
		}
		if _, dup := seen[s]; dup {
			return errors.Wrapf(ErrInvalidSeatSelection, "seat %s selected twice", string(s))
		}
		seen[s] = struct{}{}
	}
	return nil
}

type SeatState byte

const (
	Available SeatState = 'O'
	Taken     SeatState = 'X'
)

func (s SeatState) Valid() bool {
	return s == Available || s == Taken
}

func (s SeatState) String() string {
	return string(rune(s))
}

// ParseSeatState accepts the single-character ledger encoding.
func ParseSeatState(v string) (SeatState, error) {
	if len(v) == 1 && SeatState(v[0]).Valid() {
		return SeatState(v[0]), nil
	}
	return 0, errors.Wrapf(ErrStorageInconsistency, "unknown seat state %q", v)
}

// SeatStates is one seat ledger row in row-major order.
type SeatStates [SeatCount]SeatState

// NewSeatStates returns a row with every seat available.
func NewSeatStates() SeatStates {
	var s SeatStates
	for i := range s {
		s[i] = Available
	}
	return s
}

func (s SeatStates) State(label SeatLabel) SeatState {
	idx := label.Index()
	if idx < 0 {
		return 0
	}
	return s[idx]
}

// Availability returns true for every available slot, row-major.
func (s SeatStates) Availability() []bool {
	out := make([]bool, SeatCount)
	for i, st := range s {
		out[i] = st == Available
	}
	return out
}

func (s SeatStates) Counts() (available, taken int) {
	for _, st := range s {
		if st == Available {
			available++
		}
	}
	return available, SeatCount - available
}

// Occupied returns the labels among seats that are already taken, in request order.
func (s SeatStates) Occupied(seats []SeatLabel) []SeatLabel {
	var out []SeatLabel
	for _, seat := range seats {
		if s.State(seat) == Taken {
			out = append(out, seat)
		}
	}
	return out
}

// With returns a copy of the row with the given seats set to state.
func (s SeatStates) With(seats []SeatLabel, state SeatState) SeatStates {
	out := s
	for _, seat := range seats {
		if idx := seat.Index(); idx >= 0 {
			out[idx] = state
		}
	}
	return out
}

// Grid renders the row as a screen-facing seat map.
func (s SeatStates) Grid() string {
	var b strings.Builder
	b.WriteString("        Screen\n   ")
	for col := 1; col <= SeatColumns; col++ {
		b.WriteString(" ")
		b.WriteByte(byte('0' + col))
	}
	b.WriteString("\n")
	for r := 0; r < len(SeatRows); r++ {
		b.WriteString(" ")
		b.WriteByte(SeatRows[r])
		b.WriteString(" ")
		for c := 0; c < SeatColumns; c++ {
			b.WriteString(" ")
			b.WriteByte(byte(s[r*SeatColumns+c]))
		}
		b.WriteString("\n")
	}
	b.WriteString("O: seats available; X: seats taken\n")
	return b.String()
}
