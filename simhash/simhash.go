package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// Fingerprint computes a 64-bit SimHash of the given text.
// Latin words count as one token each; runs of CJK characters, which carry
// no spaces, are split into overlapping rune bigrams.
func Fingerprint(text string) uint64 {
	return fingerprintTokens(tokenize(text))
}

// FingerprintTitles fingerprints an ordered list of result titles.
func FingerprintTitles(titles []string) uint64 {
	var tokens []string
	for _, t := range titles {
		tokens = append(tokens, tokenize(t)...)
	}
	return fingerprintTokens(tokens)
}

func fingerprintTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// tokenize splits text into words and CJK bigrams.
func tokenize(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		var word []rune
		var cjk []rune
		flushWord := func() {
			if len(word) > 0 {
				tokens = append(tokens, strings.ToLower(string(word)))
				word = word[:0]
			}
		}
		flushCJK := func() {
			switch {
			case len(cjk) == 1:
				tokens = append(tokens, string(cjk))
			case len(cjk) > 1:
				for i := 0; i+1 < len(cjk); i++ {
					tokens = append(tokens, string(cjk[i:i+2]))
				}
			}
			cjk = cjk[:0]
		}

		for _, r := range field {
			switch {
			case isCJK(r):
				flushWord()
				cjk = append(cjk, r)
			case unicode.IsLetter(r) || unicode.IsDigit(r):
				flushCJK()
				word = append(word, r)
			default:
				flushWord()
				flushCJK()
			}
		}
		flushWord()
		flushCJK()
	}
	return tokens
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
