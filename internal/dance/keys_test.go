package dance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeySequence(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	seq := GenerateKeySequence(r, 6)
	require.Len(t, seq, 6)
	for _, k := range seq {
		assert.True(t, k.Valid(), "unexpected key %q", k)
	}

	assert.Empty(t, GenerateKeySequence(r, 0))
}

func TestGenerateKeySequence_UsesWholeAlphabet(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	seen := map[Key]bool{}
	for _, k := range GenerateKeySequence(r, 400) {
		seen[k] = true
	}
	assert.Len(t, seen, len(Alphabet))
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "one", want: KeyOne},
		{in: "4", want: KeyFour},
		{in: "three", want: KeyThree},
		{in: "five", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseKey(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAreaClone_DoesNotAlias(t *testing.T) {
	a := NewArea("floor")
	a.MusicQueue = []TrackInfo{{URL: "u1"}}
	a.KeySequence = KeySequence{KeyOne}
	a.Points["p1"] = 3

	c := a.Clone()
	c.MusicQueue[0].URL = "changed"
	c.KeySequence[0] = KeyTwo
	c.Points["p1"] = 9

	assert.Equal(t, "u1", a.MusicQueue[0].URL)
	assert.Equal(t, KeyOne, a.KeySequence[0])
	assert.Equal(t, 3, a.Points["p1"])
}

func TestAreaCurrentTrack(t *testing.T) {
	a := NewArea("floor")
	_, ok := a.CurrentTrack()
	assert.False(t, ok)

	a.MusicQueue = []TrackInfo{{URL: "u1"}, {URL: "u2"}}
	tr, ok := a.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "u1", tr.URL)
}

func TestRatingValidate(t *testing.T) {
	assert.NoError(t, Rating{Rating: 1}.Validate())
	assert.NoError(t, Rating{Rating: 5}.Validate())
	assert.ErrorIs(t, Rating{Rating: 0}.Validate(), ErrInvalidRating)
	assert.ErrorIs(t, Rating{Rating: 6}.Validate(), ErrInvalidRating)
}
