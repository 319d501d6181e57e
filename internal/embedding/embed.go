// Package embedding maps text to fixed-size unit vectors for diary search.
package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// Dimensions is the default vector size.
const Dimensions = 64

// Tokenize lower-cases text and splits it into runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Embed returns the Dimensions-sized embedding of text.
func Embed(text string) []float32 {
	return EmbedN(text, Dimensions)
}

// EmbedN returns the dims-sized embedding of text.
//
// Each token is hashed with an 8-byte BLAKE2b digest read big-endian. The hash
// modulo dims picks the component and bit 8 picks the sign (+1 when set).
// The sum is L2-normalized with the norm floored at 1. Text without tokens
// yields the zero vector.
func EmbedN(text string, dims int) []float32 {
	if dims <= 0 {
		dims = Dimensions
	}
	acc := make([]float64, dims)
	for _, tok := range Tokenize(text) {
		h := tokenHash(tok)
		sign := -1.0
		if (h>>8)&1 == 1 {
			sign = 1.0
		}
		acc[h%uint64(dims)] += sign
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	norm := math.Max(math.Sqrt(sum), 1.0)

	out := make([]float32, dims)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func tokenHash(tok string) uint64 {
	// blake2b.New only fails for invalid sizes or oversized keys.
	d, err := blake2b.New(8, nil)
	if err != nil {
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	d.Write([]byte(tok))
	return binary.BigEndian.Uint64(d.Sum(nil))
}

// Cosine returns the cosine similarity of a and b, 0 when either is zero.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
