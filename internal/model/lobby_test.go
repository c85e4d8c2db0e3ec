package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLobbyCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LobbyCode
		wantErr bool
	}{
		{name: "lowercase is uppercased", input: "game1", want: "GAME1"},
		{name: "minimum length", input: "abcd", want: "ABCD"},
		{name: "maximum length", input: "ABCDEFGHIJ12", want: "ABCDEFGHIJ12"},
		{name: "too short", input: "ab", wantErr: true},
		{name: "too long", input: "TOOLONGCODE12", wantErr: true},
		{name: "punctuation", input: "AB!D", wantErr: true},
		{name: "whitespace", input: "AB D", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "non-ascii letter", input: "ÄBCD", wantErr: true},
		{name: "sharp s expands", input: "straße1", want: "STRASSE1"},
		{name: "leading sharp s", input: "ßabc", want: "SSABC"},
		{name: "ligature expands", input: "ﬀab1", want: "FFAB1"},
		{name: "expansion past maximum", input: "ßßßßßßß", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLobbyCode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCodeDoesNotValidate(t *testing.T) {
	assert.Equal(t, LobbyCode("A!"), NormalizeCode("a!"))
	assert.Equal(t, LobbyCode("STRASSE!"), NormalizeCode("straße!"))
}

func TestSeatFillsRedBeforeBlue(t *testing.T) {
	lobby := &Lobby{Code: "ABCD"}

	slot, ok := lobby.Seat("alice")
	require.True(t, ok)
	assert.Equal(t, SlotRed, slot)

	slot, ok = lobby.Seat("bob")
	require.True(t, ok)
	assert.Equal(t, SlotBlue, slot)
	assert.True(t, lobby.IsFull())

	_, ok = lobby.Seat("carol")
	assert.False(t, ok)
	assert.Equal(t, Identity("alice"), *lobby.Red)
	assert.Equal(t, Identity("bob"), *lobby.Blue)
}

func TestSeatUsesEmptyRedFirst(t *testing.T) {
	bob := Identity("bob")
	lobby := &Lobby{Code: "ABCD", Blue: &bob}

	slot, ok := lobby.Seat("alice")
	require.True(t, ok)
	assert.Equal(t, SlotRed, slot)
}

func TestSlotOf(t *testing.T) {
	alice, bob := Identity("alice"), Identity("bob")
	lobby := &Lobby{Red: &alice, Blue: &bob}

	slot, ok := lobby.SlotOf("alice")
	assert.True(t, ok)
	assert.Equal(t, SlotRed, slot)

	slot, ok = lobby.SlotOf("bob")
	assert.True(t, ok)
	assert.Equal(t, SlotBlue, slot)

	_, ok = lobby.SlotOf("carol")
	assert.False(t, ok)
}

func TestAdvanceOnlyTouchesOneCounter(t *testing.T) {
	lobby := &Lobby{RedCount: 3, BlueCount: 7}

	lobby.Advance(SlotRed)
	assert.Equal(t, uint32(4), lobby.RedCount)
	assert.Equal(t, uint32(7), lobby.BlueCount)

	lobby.Advance(SlotBlue)
	assert.Equal(t, uint32(4), lobby.RedCount)
	assert.Equal(t, uint32(8), lobby.BlueCount)
}

func TestSaturatingIncrement(t *testing.T) {
	assert.Equal(t, uint32(1), SaturatingIncrement(0))
	assert.Equal(t, uint32(math.MaxUint32), SaturatingIncrement(math.MaxUint32-1))
	assert.Equal(t, uint32(math.MaxUint32), SaturatingIncrement(math.MaxUint32))
}

func TestCloneIsDeep(t *testing.T) {
	alice := Identity("alice")
	lobby := &Lobby{Code: "ABCD", Red: &alice}

	clone := lobby.Clone()
	*clone.Red = "mallory"
	clone.RedCount = 5

	assert.Equal(t, Identity("alice"), *lobby.Red)
	assert.Equal(t, uint32(0), lobby.RedCount)
}
