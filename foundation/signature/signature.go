// Package signature provides helper functions for signing and verifying the
// session tokens issued by the gate.
package signature

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature doesn't match the data.
var ErrInvalidSignature = errors.New("invalid signature")

// zephyrStamp is mixed into every hash that is signed. This makes it clear
// the signature was produced for the Zephyr gate and nothing else.
var zephyrStamp = []byte("\x19Zephyr Signed Message:\n32")

// =============================================================================

// Sign uses the specified private key to sign the value. The signature is
// returned hex encoded.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	return hexutil.Encode(sig), nil
}

// FromAddress extracts the address for the account that signed the value.
func FromAddress(value any, sigStr string) (string, error) {

	// Prepare the data for public key extraction.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	// Capture the public key associated with this data and signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	// Check the signature values match the recovered key.
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, sig[:crypto.RecoveryIDOffset]) {
		return "", ErrInvalidSignature
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// Verify checks the value was signed by the account at the address.
func Verify(value any, sigStr string, address string) error {
	from, err := FromAddress(value, sigStr)
	if err != nil {
		return err
	}

	if from != address {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, from)
	}

	return nil
}

// Address returns the address for the private key.
func Address(privateKey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privateKey.PublicKey).String()
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this value with
// the Zephyr stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Marshal the data.
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array. This will provide
	// a data length consistency with all data.
	h := crypto.Keccak256(v)

	// Hash the stamp and value hash together in a final 32 byte array
	// that represents the data.
	return crypto.Keccak256(zephyrStamp, h), nil
}
