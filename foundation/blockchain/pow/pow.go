// Package pow implements the proof of work puzzle shared by the ledger and
// the prospectors. A proof is valid for a block when the SHA-256 hash of the
// block's canonical string followed by the decimal proof starts with a
// difficulty number of '0' hex characters.
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// MaxDifficulty is the number of hex characters in a SHA-256 hash.
const MaxDifficulty = sha256.Size * 2

// Intervals, in attempts, for checking cancellation and reporting progress.
const (
	checkEvery  = 1 << 14
	reportEvery = 1 << 20
)

// EventHandler defines a function that is called when events
// occur during the search.
type EventHandler func(v string, args ...any)

// =============================================================================

// Guess returns the hex encoded hash of the block string and proof.
func Guess(blockString string, proof int64) string {
	hash := sha256.Sum256(strconv.AppendInt([]byte(blockString), proof, 10))
	return hex.EncodeToString(hash[:])
}

// ValidProof reports whether the proof solves the puzzle for the
// block string at the specified difficulty.
func ValidProof(blockString string, proof int64, difficulty int) bool {
	hash := sha256.Sum256(strconv.AppendInt([]byte(blockString), proof, 10))
	return isHashSolved(difficulty, hash)
}

// Search looks for the first proof, counting up from zero, that solves the
// puzzle for the block string. The search only ends when a proof is found
// or the context is cancelled.
func Search(ctx context.Context, blockString string, difficulty int, ev EventHandler) (int64, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("pow: Search: started: difficulty[%d]", difficulty)
	defer ev("pow: Search: completed")

	// Reuse the same buffer for every guess. Only the proof
	// digits change between attempts.
	prefix := len(blockString)
	buf := make([]byte, prefix, prefix+20)
	copy(buf, blockString)

	var proof int64
	for {
		if proof%checkEvery == 0 && proof > 0 {
			if err := ctx.Err(); err != nil {
				ev("pow: Search: CANCELLED: attempts[%d]", proof)
				return 0, err
			}
			if proof%reportEvery == 0 {
				ev("pow: Search: attempts[%d]", proof)
			}
		}

		buf = strconv.AppendInt(buf[:prefix], proof, 10)
		if isHashSolved(difficulty, sha256.Sum256(buf)) {
			ev("pow: Search: SOLVED: proof[%d]", proof)
			return proof, nil
		}

		proof++
	}
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty int, hash [sha256.Size]byte) bool {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return false
	}

	// Each byte holds two hex characters.
	for i := 0; i < difficulty/2; i++ {
		if hash[i] != 0 {
			return false
		}
	}

	if difficulty%2 == 1 && hash[difficulty/2]>>4 != 0 {
		return false
	}

	return true
}
