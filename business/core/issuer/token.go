package issuer

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zephyr/powgate/foundation/signature"
)

// ErrInvalidToken is returned when a session token can't be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by a session token.
type Claims struct {
	Challenge      string  `json:"challenge"`
	Nonce          uint64  `json:"nonce"`
	Response       string  `json:"response"`
	IssuedAt       int64   `json:"iat"`
	NotBefore      int64   `json:"nbf"`
	Expires        int64   `json:"exp"`
	ProcessingTime float64 `json:"processing_time"`
	HashRate       float64 `json:"hash_rate"`
}

// Difficulty returns the number of leading zeros of the solved digest.
func (c Claims) Difficulty() int {
	return len(c.Response) - len(strings.TrimLeft(c.Response, "0"))
}

// tokenHeader identifies the signing scheme of the token.
type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// tokenBody is what gets signed and encoded as the first part of the token.
type tokenBody struct {
	Header  tokenHeader `json:"header"`
	Payload Claims      `json:"payload"`
}

var header = tokenHeader{Alg: "ES256K", Typ: "JWT"}

// signToken produces "<base64url(body)>.<signature>".
func signToken(claims Claims, privateKey *ecdsa.PrivateKey) (string, error) {
	body := tokenBody{Header: header, Payload: claims}

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	sig, err := signature.Sign(body, privateKey)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(data) + "." + sig, nil
}

// parseToken checks the signature and the validity window of the token.
func parseToken(token string, publicKey *ecdsa.PublicKey, now time.Time) (Claims, error) {
	enc, sig, found := strings.Cut(token, ".")
	if !found {
		return Claims{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}

	data, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: decoding: %s", ErrInvalidToken, err)
	}

	var body tokenBody
	if err := json.Unmarshal(data, &body); err != nil {
		return Claims{}, fmt.Errorf("%w: unmarshal: %s", ErrInvalidToken, err)
	}

	if body.Header != header {
		return Claims{}, fmt.Errorf("%w: unsupported header", ErrInvalidToken)
	}

	address := crypto.PubkeyToAddress(*publicKey).String()
	if err := signature.Verify(body, sig, address); err != nil {
		return Claims{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	unix := now.Unix()
	if unix < body.Payload.NotBefore || unix >= body.Payload.Expires {
		return Claims{}, fmt.Errorf("%w: outside validity window", ErrInvalidToken)
	}

	return body.Payload, nil
}
