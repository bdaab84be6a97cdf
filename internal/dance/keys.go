package dance

import (
	"errors"
	"math/rand"
	"slices"
)

var ErrInvalidKey = errors.New("invalid key")

// Key is one symbol of the prompt alphabet. Players press the matching
// number key (1-4) when the prompt crosses the line.
type Key string

const (
	KeyOne   Key = "one"
	KeyTwo   Key = "two"
	KeyThree Key = "three"
	KeyFour  Key = "four"
)

// Alphabet is the fixed set of keys a sequence is drawn from.
var Alphabet = []Key{KeyOne, KeyTwo, KeyThree, KeyFour}

type KeySequence []Key

func (k Key) Valid() bool {
	return slices.Contains(Alphabet, k)
}

// ParseKey accepts either the symbolic name ("two") or the digit ("2").
func ParseKey(s string) (Key, error) {
	switch s {
	case "1":
		return KeyOne, nil
	case "2":
		return KeyTwo, nil
	case "3":
		return KeyThree, nil
	case "4":
		return KeyFour, nil
	}
	k := Key(s)
	if !k.Valid() {
		return "", ErrInvalidKey
	}
	return k, nil
}

// GenerateKeySequence draws n independent uniform samples from Alphabet.
// Repeats are allowed and no minimum variety is enforced.
func GenerateKeySequence(r *rand.Rand, n int) KeySequence {
	seq := make(KeySequence, n)
	for i := range seq {
		seq[i] = Alphabet[r.Intn(len(Alphabet))]
	}
	return seq
}
