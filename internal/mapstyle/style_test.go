package mapstyle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapStyle(t *testing.T) {
	tests := []struct {
		input string
		want  MapStyle
	}{
		{"standard", Standard},
		{"Hybrid", Hybrid},
		{" IMAGERY ", Imagery},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMapStyle(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseMapStyle("satellite")
	assert.ErrorIs(t, err, ErrUnknownStyle)
}

func TestParseElevationAndEmphasis(t *testing.T) {
	e, err := ParseElevationStyle("flat")
	require.NoError(t, err)
	assert.Equal(t, Flat, e)

	p, err := ParseEmphasisStyle("muted")
	require.NoError(t, err)
	assert.Equal(t, Muted, p)

	_, err = ParseElevationStyle("3d")
	assert.ErrorIs(t, err, ErrUnknownStyle)
	_, err = ParseEmphasisStyle("")
	assert.ErrorIs(t, err, ErrUnknownStyle)
}

func TestParseState(t *testing.T) {
	st, err := ParseState("hybrid", "flat", "muted")
	require.NoError(t, err)
	assert.Equal(t, State{Map: Hybrid, Elevation: Flat, Emphasis: Muted}, st)

	_, err = ParseState("hybrid", "steep", "muted")
	assert.ErrorIs(t, err, ErrUnknownStyle)
}

func TestStyleStrings(t *testing.T) {
	assert.Equal(t, "imagery", Imagery.String())
	assert.Equal(t, "flat", Flat.String())
	assert.Equal(t, "muted", Muted.String())
	assert.Equal(t, "unknown(5)", MapStyle(5).String())
	assert.Equal(t, "map=standard elevation=realistic emphasis=default", State{}.String())
}

func TestNextCycles(t *testing.T) {
	assert.Equal(t, Hybrid, Standard.Next())
	assert.Equal(t, Imagery, Hybrid.Next())
	assert.Equal(t, Standard, Imagery.Next())
	assert.Equal(t, Flat, Realistic.Next())
	assert.Equal(t, Realistic, Flat.Next())
	assert.Equal(t, Muted, DefaultEmphasis.Next())
	assert.Equal(t, DefaultEmphasis, Muted.Next())
	assert.Equal(t, Hybrid, MapStyle(17).Next())
}

func TestStore_DefaultsToFirstEnumerators(t *testing.T) {
	s := NewStore(State{})
	assert.Equal(t, State{Map: Standard, Elevation: Realistic, Emphasis: DefaultEmphasis}, s.State())
}

func TestStore_NotifiesOnChange(t *testing.T) {
	s := NewStore(State{})

	var got []State
	s.Subscribe(func(st State) { got = append(got, st) })

	assert.True(t, s.Set(State{Map: Hybrid}))
	assert.True(t, s.Set(State{Map: Hybrid, Elevation: Flat}))
	assert.True(t, s.Set(State{Map: Hybrid, Elevation: Flat, Emphasis: Muted}))
	assert.False(t, s.Set(State{Map: Hybrid, Elevation: Flat, Emphasis: Muted}))

	require.Len(t, got, 3)
	assert.Equal(t, State{Map: Hybrid}, got[0])
	assert.Equal(t, State{Map: Hybrid, Elevation: Flat}, got[1])
	assert.Equal(t, State{Map: Hybrid, Elevation: Flat, Emphasis: Muted}, got[2])
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(State{})

	calls := 0
	unsubscribe := s.Subscribe(func(State) { calls++ })
	unsubscribe()
	s.Set(State{Map: Imagery})

	assert.Equal(t, 0, calls)
	assert.Equal(t, Imagery, s.State().Map)
}
