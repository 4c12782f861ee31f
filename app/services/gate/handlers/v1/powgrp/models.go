package powgrp

import (
	"github.com/zephyr/powgate/business/core/issuer"
	"github.com/zephyr/powgate/business/sys/validate"
	"github.com/zephyr/powgate/foundation/pow"
)

// AppChallenge is the document returned for a new challenge.
type AppChallenge struct {
	Challenge   string `json:"challenge"`
	Difficulty  int    `json:"difficulty"`
	ChallengeID string `json:"challengeId"`
}

func toAppChallenge(ch pow.Challenge) AppChallenge {
	return AppChallenge{
		Challenge:   ch.Text,
		Difficulty:  ch.Difficulty,
		ChallengeID: ch.ID,
	}
}

// AppVerify is the solution submitted by a client.
type AppVerify struct {
	Challenge      string  `json:"challenge" validate:"required"`
	Nonce          *uint64 `json:"nonce" validate:"required"`
	Difficulty     int     `json:"difficulty" validate:"required,min=1"`
	ChallengeID    string  `json:"challengeId" validate:"required"`
	ProcessingTime float64 `json:"processing_time" validate:"min=0"`
	HashRate       float64 `json:"hash_rate" validate:"min=0"`
}

// Validate checks the data in the model is considered clean.
func (app AppVerify) Validate() error {
	return validate.Check(app)
}

func toSubmission(app AppVerify) issuer.Submission {
	return issuer.Submission{
		ChallengeID:    app.ChallengeID,
		Challenge:      app.Challenge,
		Nonce:          *app.Nonce,
		Difficulty:     app.Difficulty,
		ProcessingTime: app.ProcessingTime,
		HashRate:       app.HashRate,
	}
}

// AppVerifyResult is the document returned for a submitted solution.
type AppVerifyResult struct {
	Status  string `json:"status"`
	JWT     string `json:"jwt,omitempty"`
	Message string `json:"message,omitempty"`
}
