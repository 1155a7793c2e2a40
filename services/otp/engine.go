package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEntropyFailure  = errors.New("failed to read from entropy source")
	ErrMalformedSecret = errors.New("malformed base32 secret")
)

const (
	// Digits is the width of every generated one-time code.
	Digits = 6

	// Period is the length of one time step in seconds.
	Period = 30

	secretLength = 20
	skewWindow   = 1
)

// Authenticator apps expect RFC 4648 base32 without padding characters.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret draws a fresh 20-byte secret from the system CSPRNG and
// returns it base32-encoded. An entropy failure is not retried; the caller
// must abort the setup flow.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyFailure, err)
	}
	return encoding.EncodeToString(buf), nil
}

// DecodeSecret decodes a base32 secret to the raw HMAC key bytes.
func DecodeSecret(secret string) ([]byte, error) {
	key, err := encoding.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	return key, nil
}

// Code derives the 6-digit one-time code for a secret and counter value using
// HMAC-SHA1 with RFC 4226 dynamic truncation. It is deterministic and pure.
func Code(secret string, counter uint64) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	digest := mac.Sum(nil)

	// Dynamic truncation: the low nibble of the last byte selects a 4-byte
	// window; the top bit of that window is cleared to keep the value in
	// 31 bits.
	offset := digest[len(digest)-1] & 0x0f
	value := uint32(digest[offset]&0x7f)<<24 |
		uint32(digest[offset+1])<<16 |
		uint32(digest[offset+2])<<8 |
		uint32(digest[offset+3])

	return fmt.Sprintf("%0*d", Digits, value%1_000_000), nil
}

// TimeCounter maps a Unix timestamp to its 30-second time step.
func TimeCounter(nowSeconds uint64) uint64 {
	return nowSeconds / Period
}

// Verify tests a presented code against the current time step and one step on
// either side, tolerating up to 30 seconds of clock skew between the
// authenticator and the server. Comparison is constant-time.
func Verify(secret, code string, nowSeconds uint64) bool {
	if len(code) != Digits {
		return false
	}

	counter := TimeCounter(nowSeconds)
	matched := false
	for delta := -skewWindow; delta <= skewWindow; delta++ {
		if delta < 0 && counter < uint64(-delta) {
			continue
		}
		candidate, err := Code(secret, counter+uint64(delta))
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			matched = true
		}
	}
	return matched
}

// ProvisioningURI renders the otpauth:// URI that authenticator apps scan
// during setup. Issuer and account name are percent-escaped; spaces in an
// issuer like "Health Portal" must not reach the URI raw.
func ProvisioningURI(issuer, accountName, secret string) string {
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuer)

	return fmt.Sprintf("otpauth://totp/%s:%s?%s",
		url.PathEscape(issuer), url.PathEscape(accountName), params.Encode())
}
