// Package issuer is the server side of the gate. It issues challenges,
// verifies solutions and signs the session tokens handed to clients.
package issuer

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zephyr/powgate/foundation/pow"
)

// Set of error variables for verifying solutions.
var (
	ErrMissingData       = errors.New("missing required data")
	ErrUnknownChallenge  = errors.New("invalid or expired challenge id")
	ErrChallengeMismatch = errors.New("challenge string mismatch")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidSolution   = errors.New("invalid proof of work solution")
)

// EventHandler defines a function that is called when events
// occur in the issuing and verifying of challenges.
type EventHandler func(kind string, format string, args ...any)

// Config represents the configuration required to construct an issuer.
type Config struct {
	PrivateKey        *ecdsa.PrivateKey
	MinDifficulty     int
	MaxDifficulty     int
	DefaultDifficulty int
	ChallengeTTL      time.Duration
	CleanupInterval   time.Duration
	TokenTTL          time.Duration
	EvHandler         EventHandler
	Now               func() time.Time
}

// entry is an outstanding challenge.
type entry struct {
	text       string
	difficulty int
	issued     time.Time
}

// Issuer manages the set of outstanding challenges.
type Issuer struct {
	privateKey *ecdsa.PrivateKey
	minDiff    int
	maxDiff    int
	defDiff    int
	ttl        time.Duration
	cleanup    time.Duration
	tokenTTL   time.Duration
	evHandler  EventHandler
	now        func() time.Time

	mu         sync.Mutex
	challenges map[string]entry

	wg   sync.WaitGroup
	shut chan struct{}
	once sync.Once
}

// New constructs an issuer, applying defaults for zero values.
func New(cfg Config) (*Issuer, error) {
	if cfg.PrivateKey == nil {
		return nil, errors.New("private key is required")
	}

	ev := func(kind string, format string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(kind, format, args...)
		}
	}

	iss := Issuer{
		privateKey: cfg.PrivateKey,
		minDiff:    cfg.MinDifficulty,
		maxDiff:    cfg.MaxDifficulty,
		defDiff:    cfg.DefaultDifficulty,
		ttl:        cfg.ChallengeTTL,
		cleanup:    cfg.CleanupInterval,
		tokenTTL:   cfg.TokenTTL,
		evHandler:  ev,
		now:        cfg.Now,
		challenges: make(map[string]entry),
		shut:       make(chan struct{}),
	}

	if iss.minDiff <= 0 {
		iss.minDiff = 3
	}
	if iss.maxDiff <= 0 {
		iss.maxDiff = 7
	}
	if iss.defDiff <= 0 {
		iss.defDiff = 5
	}
	if iss.ttl <= 0 {
		iss.ttl = time.Hour
	}
	if iss.cleanup <= 0 {
		iss.cleanup = 10 * time.Minute
	}
	if iss.tokenTTL <= 0 {
		iss.tokenTTL = 300 * time.Second
	}
	if iss.now == nil {
		iss.now = time.Now
	}

	if iss.minDiff > iss.maxDiff || iss.defDiff < iss.minDiff || iss.defDiff > iss.maxDiff || iss.maxDiff > pow.MaxDifficulty {
		return nil, fmt.Errorf("difficulty range [%d, %d] default %d is invalid", iss.minDiff, iss.maxDiff, iss.defDiff)
	}

	return &iss, nil
}

// Tiers returns the difficulties the issuer will honor.
func (iss *Issuer) Tiers() []int {
	tiers := make([]int, 0, iss.maxDiff-iss.minDiff+1)
	for d := iss.minDiff; d <= iss.maxDiff; d++ {
		tiers = append(tiers, d)
	}
	return tiers
}

// ClampDifficulty returns the difficulty if it is an offered tier, otherwise
// the default difficulty.
func (iss *Issuer) ClampDifficulty(difficulty int) int {
	if difficulty < iss.minDiff || difficulty > iss.maxDiff {
		return iss.defDiff
	}
	return difficulty
}

// Issue creates and records a new challenge.
func (iss *Issuer) Issue(difficulty int) (pow.Challenge, error) {
	difficulty = iss.ClampDifficulty(difficulty)

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return pow.Challenge{}, fmt.Errorf("generating challenge: %w", err)
	}

	ch := pow.Challenge{
		ID:         uuid.NewString(),
		Text:       hex.EncodeToString(b),
		Difficulty: difficulty,
	}

	iss.mu.Lock()
	iss.challenges[ch.ID] = entry{text: ch.Text, difficulty: difficulty, issued: iss.now()}
	iss.mu.Unlock()

	iss.evHandler("issued", "challenge[%s] difficulty[%d]", ch.ID, difficulty)

	return ch, nil
}

// Outstanding returns the number of challenges waiting for a solution.
func (iss *Issuer) Outstanding() int {
	iss.mu.Lock()
	defer iss.mu.Unlock()

	return len(iss.challenges)
}

// Submission is a solution presented for verification.
type Submission struct {
	ChallengeID    string
	Challenge      string
	Nonce          uint64
	Difficulty     int
	ProcessingTime float64
	HashRate       float64
}

// Verify checks the submission solves an outstanding challenge. On success
// the challenge is consumed and a signed session token is returned.
func (iss *Issuer) Verify(sub Submission) (string, error) {
	if sub.ChallengeID == "" || sub.Challenge == "" {
		return "", ErrMissingData
	}

	iss.mu.Lock()
	defer iss.mu.Unlock()

	e, exists := iss.challenges[sub.ChallengeID]
	if !exists || iss.now().Sub(e.issued) > iss.ttl {
		return "", ErrUnknownChallenge
	}

	if e.text != sub.Challenge {
		return "", ErrChallengeMismatch
	}

	// The client can't lower the difficulty it was issued.
	if sub.Difficulty < iss.minDiff || sub.Difficulty > iss.maxDiff || sub.Difficulty < e.difficulty {
		return "", ErrInvalidDifficulty
	}

	if !pow.Verify(sub.Challenge, sub.Nonce, sub.Difficulty) {
		iss.evHandler("rejected", "challenge[%s] nonce[%d]", sub.ChallengeID, sub.Nonce)
		return "", ErrInvalidSolution
	}

	delete(iss.challenges, sub.ChallengeID)

	now := iss.now()
	claims := Claims{
		Challenge:      sub.Challenge,
		Nonce:          sub.Nonce,
		Response:       pow.HexDigest(sub.Challenge, sub.Nonce),
		IssuedAt:       now.Unix(),
		NotBefore:      now.Add(-time.Minute).Unix(),
		Expires:        now.Add(iss.tokenTTL).Unix(),
		ProcessingTime: sub.ProcessingTime,
		HashRate:       sub.HashRate,
	}

	token, err := signToken(claims, iss.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	iss.evHandler("verified", "challenge[%s] nonce[%d] time[%.2fs]", sub.ChallengeID, sub.Nonce, sub.ProcessingTime)

	return token, nil
}

// ParseToken validates the token was signed by this issuer and is within
// its validity window.
func (iss *Issuer) ParseToken(token string) (Claims, error) {
	return parseToken(token, &iss.privateKey.PublicKey, iss.now())
}

// =============================================================================

// Run starts the G that removes expired challenges.
func (iss *Issuer) Run() {
	iss.wg.Add(1)

	go func() {
		defer iss.wg.Done()

		ticker := time.NewTicker(iss.cleanup)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				iss.Cleanup()
			case <-iss.shut:
				return
			}
		}
	}()
}

// Shutdown terminates the cleanup G.
func (iss *Issuer) Shutdown() {
	iss.once.Do(func() {
		close(iss.shut)
	})
	iss.wg.Wait()
}

// Cleanup removes challenges older than the challenge TTL.
func (iss *Issuer) Cleanup() int {
	iss.mu.Lock()
	defer iss.mu.Unlock()

	now := iss.now()

	var removed int
	for id, e := range iss.challenges {
		if now.Sub(e.issued) > iss.ttl {
			delete(iss.challenges, id)
			removed++
		}
	}

	if removed > 0 {
		iss.evHandler("cleanup", "removed[%d] outstanding[%d]", removed, len(iss.challenges))
	}

	return removed
}
