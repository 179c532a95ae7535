package room

import (
	"math/rand"
	"strings"
)

const CodeLength = 4

// I, O and V are left out so codes stay unambiguous when read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUWXYZ"

var deniedSubstrings = []string{
	"FUCK", "FVCK", "SHIT", "DAMN", "CUNT",
	"DICK", "COCK", "TWAT", "CRAP", "STFU",
}

func GenerateCode(rng *rand.Rand) string {
	for {
		b := make([]byte, CodeLength)
		for i := range b {
			b[i] = codeAlphabet[rng.Intn(len(codeAlphabet))]
		}
		if c := string(b); !Profane(c) {
			return c
		}
	}
}

func Profane(code string) bool {
	for _, w := range deniedSubstrings {
		if strings.Contains(code, w) {
			return true
		}
	}
	return false
}

// NormalizeCode upper-cases and trims user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode accepts CodeLength letters of the generator's alphabet that are
// not denylisted.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(codeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return !Profane(code)
}
