package model

import (
	"math"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LobbyCode is the uppercase alphanumeric key of a lobby
type LobbyCode string

// Lobby code length bounds (inclusive)
const (
	MinLobbyCodeLength = 4
	MaxLobbyCodeLength = 12
)

// Slot names one of the two membership positions in a lobby
type Slot string

const (
	SlotRed  Slot = "red"
	SlotBlue Slot = "blue"
)

// Lobby is a two-slot session record
type Lobby struct {
	Code      LobbyCode
	Red       *Identity
	Blue      *Identity
	RedCount  uint32
	BlueCount uint32
	Created   time.Time
	// Version counts committed writes to the row, starting at 1
	Version uint64
}

// NormalizeCode uppercases a raw lobby code without validating it.
// Full case mapping applies, so "ß" becomes "SS" and ligatures split.
func NormalizeCode(raw string) LobbyCode {
	// a Caser holds state and cannot be shared between goroutines
	return LobbyCode(cases.Upper(language.Und).String(raw))
}

// ParseLobbyCode normalizes raw and checks its length and character set
func ParseLobbyCode(raw string) (LobbyCode, error) {
	code := NormalizeCode(raw)
	if len(code) < MinLobbyCodeLength || len(code) > MaxLobbyCodeLength {
		return "", ErrInvalidCode
	}
	for i := 0; i < len(code); i++ {
		if !isASCIIAlphanumeric(code[i]) {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}

func isASCIIAlphanumeric(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9')
}

// SlotOf returns the slot occupied by id, or false if it occupies neither
func (l *Lobby) SlotOf(id Identity) (Slot, bool) {
	switch {
	case l.Red != nil && *l.Red == id:
		return SlotRed, true
	case l.Blue != nil && *l.Blue == id:
		return SlotBlue, true
	}
	return "", false
}

// IsFull reports whether both slots are occupied
func (l *Lobby) IsFull() bool {
	return l.Red != nil && l.Blue != nil
}

// Seat places id in the first empty slot, red before blue
func (l *Lobby) Seat(id Identity) (Slot, bool) {
	switch {
	case l.Red == nil:
		l.Red = &id
		return SlotRed, true
	case l.Blue == nil:
		l.Blue = &id
		return SlotBlue, true
	}
	return "", false
}

// Advance bumps the counter attached to slot
func (l *Lobby) Advance(slot Slot) {
	switch slot {
	case SlotRed:
		l.RedCount = SaturatingIncrement(l.RedCount)
	case SlotBlue:
		l.BlueCount = SaturatingIncrement(l.BlueCount)
	}
}

// Clone returns a deep copy of the lobby
func (l *Lobby) Clone() *Lobby {
	c := *l
	if l.Red != nil {
		red := *l.Red
		c.Red = &red
	}
	if l.Blue != nil {
		blue := *l.Blue
		c.Blue = &blue
	}
	return &c
}

// SaturatingIncrement adds one, pinning at the maximum uint32 value
func SaturatingIncrement(n uint32) uint32 {
	if n == math.MaxUint32 {
		return n
	}
	return n + 1
}
