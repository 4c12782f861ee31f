// Package pow provides the proof of work puzzle support for the gate. It
// knows how to solve a challenge, how fast this machine can hash, and how
// long a given difficulty is expected to take.
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// MaxDifficulty is the number of hex characters in a SHA-256 digest. No
// difficulty above this can ever be solved.
const MaxDifficulty = sha256.Size * 2

// ErrInvalidDifficulty is returned when a difficulty can't be solved.
var ErrInvalidDifficulty = errors.New("invalid difficulty")

// =============================================================================

// Challenge represents a puzzle issued by the server for one solve attempt.
type Challenge struct {
	ID         string `json:"challengeId"`
	Text       string `json:"challenge"`
	Difficulty int    `json:"difficulty"`
}

// Solution represents the result of solving a challenge.
type Solution struct {
	ChallengeID    string  `json:"challengeId"`
	Challenge      string  `json:"challenge"`
	Nonce          uint64  `json:"nonce"`
	Difficulty     int     `json:"difficulty"`
	ProcessingTime float64 `json:"processing_time"` // Seconds from search start to acceptance.
	HashRateKps    float64 `json:"hash_rate"`       // Thousands of hashes per second.
	Hash           string  `json:"-"`
}

// =============================================================================

// ValidateDifficulty checks the difficulty is within a solvable range.
func ValidateDifficulty(difficulty int) error {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return fmt.Errorf("%w: %d not in range [0, %d]", ErrInvalidDifficulty, difficulty, MaxDifficulty)
	}
	return nil
}

// Digest returns the SHA-256 digest of the challenge text with the decimal
// nonce appended.
func Digest(text string, nonce uint64) [sha256.Size]byte {
	buf := make([]byte, 0, len(text)+20)
	buf = append(buf, text...)
	buf = strconv.AppendUint(buf, nonce, 10)
	return sha256.Sum256(buf)
}

// HexDigest returns the hex encoded form of Digest.
func HexDigest(text string, nonce uint64) string {
	sum := Digest(text, nonce)
	return hex.EncodeToString(sum[:])
}

// IsSolved checks the digest has at least difficulty leading hex zeros.
func IsSolved(difficulty int, sum [sha256.Size]byte) bool {
	return leadingZeroNibbles(sum) >= difficulty
}

// Verify checks the nonce solves the challenge text at the difficulty.
func Verify(text string, nonce uint64, difficulty int) bool {
	if ValidateDifficulty(difficulty) != nil {
		return false
	}
	return IsSolved(difficulty, Digest(text, nonce))
}

// leadingZeroNibbles counts the leading '0' characters the digest would
// have when hex encoded.
func leadingZeroNibbles(sum [sha256.Size]byte) int {
	var n int
	for _, b := range sum {
		if b == 0 {
			n += 2
			continue
		}
		if b < 0x10 {
			n++
		}
		return n
	}
	return n
}

// =============================================================================

// ExpectedHashes returns the number of attempts expected to solve a puzzle of
// the specified difficulty. Each hex digit is uniform over 16 values.
func ExpectedHashes(difficulty int) float64 {
	return math.Pow(16, float64(difficulty))
}

// EstimateSeconds projects the total time to solve a puzzle of the specified
// difficulty at the specified rate.
func EstimateSeconds(difficulty int, hashesPerSecond float64) float64 {
	if hashesPerSecond <= 0 {
		return math.Inf(1)
	}
	return ExpectedHashes(difficulty) / hashesPerSecond
}

// FormatTime renders an estimated duration in seconds for display.
func FormatTime(seconds float64) string {
	switch {
	case seconds < 1:
		return "<1s"
	case seconds < 60:
		return fmt.Sprintf("~%ds", int64(math.Round(seconds)))
	case math.IsInf(seconds, 1):
		return "~∞"
	}
	return fmt.Sprintf("~%dm", int64(math.Round(seconds/60)))
}

// FormatElapsed renders an elapsed time in seconds for display.
func FormatElapsed(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.2fs", seconds)
	}
	minutes := math.Floor(seconds / 60)
	return fmt.Sprintf("%dm %.2fs", int64(minutes), math.Mod(seconds, 60))
}

// FormatRate renders a hashes per second value as kH/s.
func FormatRate(hashesPerSecond float64) string {
	return fmt.Sprintf("%.2f kH/s", hashesPerSecond/1000)
}
