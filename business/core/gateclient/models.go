package gateclient

import "github.com/zephyr/powgate/foundation/pow"

// StatusSuccess is the status the gate returns for an accepted solution.
const StatusSuccess = "success"

// AccessHeader carries the structured access status on the protected page.
const (
	AccessHeader  = "X-Zephyr-Access"
	AccessGranted = "granted"
)

// AccessMarker is found inside the document served when access is granted.
const AccessMarker = "<title>Access Granted</title>"

// challengeResponse is the document returned by GET /challenge.
type challengeResponse struct {
	Challenge   string `json:"challenge"`
	Difficulty  int    `json:"difficulty"`
	ChallengeID string `json:"challengeId"`
}

// verifyRequest is the document sent to POST /verify.
type verifyRequest struct {
	Challenge      string  `json:"challenge"`
	Nonce          uint64  `json:"nonce"`
	Difficulty     int     `json:"difficulty"`
	ChallengeID    string  `json:"challengeId"`
	ProcessingTime float64 `json:"processing_time"`
	HashRate       float64 `json:"hash_rate"`
}

func toVerifyRequest(sol pow.Solution) verifyRequest {
	return verifyRequest{
		Challenge:      sol.Challenge,
		Nonce:          sol.Nonce,
		Difficulty:     sol.Difficulty,
		ChallengeID:    sol.ChallengeID,
		ProcessingTime: sol.ProcessingTime,
		HashRate:       sol.HashRateKps,
	}
}

// VerifyResponse is the document returned by POST /verify.
type VerifyResponse struct {
	Status  string `json:"status"`
	JWT     string `json:"jwt,omitempty"`
	Message string `json:"message,omitempty"`
}

// Accepted reports whether the response carries a usable session token.
func (vr VerifyResponse) Accepted() bool {
	return vr.Status == StatusSuccess && vr.JWT != ""
}

// ProbeResult describes the protected page returned by the gate.
type ProbeResult struct {
	StatusCode int
	Granted    bool
	Body       []byte
}
