package hdwallet

import (
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"

	walleterr "github.com/mrz1836/walletlink/pkg/errors"
)

// MaxTypoDistance is the largest edit distance for which a word suggestion is offered.
const MaxTypoDistance = 2

// GenerateMnemonic creates a new BIP39 mnemonic with 12 or 24 words.
func GenerateMnemonic(words int) (string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return "", walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{
			"words": fmt.Sprintf("%d (must be 12 or 24)", words),
		})
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("generating entropy: %w", err)
	}
	defer zeroBytes(entropy)

	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks word count, word list membership and checksum.
// Unknown words produce a suggestion naming the closest list word.
func ValidateMnemonic(mnemonic string) error {
	words := strings.Fields(NormalizeMnemonic(mnemonic))
	if len(words) != 12 && len(words) != 24 {
		return walleterr.WithDetails(walleterr.ErrInvalidMnemonic, map[string]string{
			"words": fmt.Sprintf("%d (must be 12 or 24)", len(words)),
		})
	}

	var hints []string
	for i, w := range words {
		if _, ok := bip39.GetWordIndex(w); ok {
			continue
		}
		if s := SuggestWord(w); s != "" {
			hints = append(hints, fmt.Sprintf("word %d: %q, did you mean %q?", i+1, w, s))
		} else {
			hints = append(hints, fmt.Sprintf("word %d: %q is not a BIP39 word", i+1, w))
		}
	}
	if len(hints) > 0 {
		return walleterr.WithSuggestion(walleterr.ErrInvalidMnemonic, strings.Join(hints, "; "))
	}

	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return walleterr.WithSuggestion(walleterr.ErrInvalidMnemonic, "checksum mismatch: check the word order")
	}
	return nil
}

// SuggestWord returns the closest BIP39 word within MaxTypoDistance, or "".
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	minDist := math.MaxInt
	var suggestion string
	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}
