// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package fileid converts the short, typo-resistant external file
// identifiers handed out by the file collection layer into the fixed width
// native identifiers used by the GridFS backing store.
package fileid

import (
	"math"
	"math/big"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

const (
	// InvalidIdentifier is returned when an external identifier contains
	// characters outside of the alphabet, or is empty.
	InvalidIdentifier = errors.ConstError("invalid external identifier")

	// Alphabet holds the unmistakable characters external identifiers are
	// drawn from. Visually ambiguous characters (0, 1, I, O, U, V, l) are
	// excluded.
	Alphabet = "23456789ABCDEFGHJKLMNPQRSTWXYZabcdefghijkmnopqrstuvwxyz"

	// NativeIDLength is the number of hex characters in a native id. It
	// matches the 12 byte binary size of a bson ObjectId.
	NativeIDLength = 24

	// externalIDLength is the length of identifiers generated by New.
	externalIDLength = 17
)

var (
	alphabetRunes = []rune(Alphabet)
	alphabetIndex = func() map[rune]int {
		m := make(map[rune]int, len(alphabetRunes))
		for i, r := range alphabetRunes {
			m[r] = i
		}
		return m
	}()
)

// New returns a new random external identifier.
func New() string {
	return utils.RandomString(externalIDLength, alphabetRunes)
}

// IsValid reports whether id is a non-empty string made only of alphabet
// characters.
func IsValid(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if _, ok := alphabetIndex[r]; !ok {
			return false
		}
	}
	return true
}

// ToNativeID converts an external identifier into the hex form of a native
// id. The identifier is read as a little-endian numeral in base
// len(Alphabet). The sum is accumulated in float64, which is how ids
// already held in existing stores were computed, so the result stays
// compatible with them.
//
// Only the leading NativeIDLength hex digits are kept; shorter results are
// left padded with zeros. Distinct identifiers can therefore map to the
// same native id.
func ToNativeID(externalID string) (string, error) {
	if externalID == "" {
		return "", errors.WithType(errors.New("empty external identifier"), InvalidIdentifier)
	}

	unit := float64(len(alphabetRunes))
	index := 1.0
	result := 0.0
	for pos, r := range externalID {
		value, ok := alphabetIndex[r]
		if !ok {
			return "", errors.WithType(
				errors.Errorf("external identifier %q: unexpected character %q at offset %d", externalID, r, pos),
				InvalidIdentifier,
			)
		}
		result += float64(value) * index
		index *= unit
	}

	if math.IsInf(result, 0) || math.IsNaN(result) {
		return "", errors.WithType(
			errors.Errorf("external identifier %q too long", externalID),
			InvalidIdentifier,
		)
	}

	// The float holds an integer value, so the conversion is exact.
	integer, _ := big.NewFloat(result).Int(nil)
	hex := integer.Text(16)
	if len(hex) > NativeIDLength {
		return hex[:NativeIDLength], nil
	}
	return strings.Repeat("0", NativeIDLength-len(hex)) + hex, nil
}
