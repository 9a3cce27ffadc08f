// internal/utils/signature.go
package utils

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StripeSignatureTolerance is the maximum accepted age of a signed payload.
const StripeSignatureTolerance = 300 * time.Second

var (
	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrTimestampTooOld        = errors.New("timestamp too old")
	ErrSignatureMismatch      = errors.New("signature mismatch")
)

// VerifyStripeSignature checks a Stripe-style signature header of the form
// "t=<unix-seconds>,v1=<hex-hmac>". The HMAC-SHA256 is computed over
// "<t>.<body>" and compared in constant time. Payloads signed outside the
// tolerance window are rejected even when the signature itself is correct.
func VerifyStripeSignature(payload []byte, header, secret string) error {
	return verifyStripeSignatureAt(payload, header, secret, time.Now())
}

func verifyStripeSignatureAt(payload []byte, header, secret string, now time.Time) error {
	var timestamp int64
	var signature string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return ErrInvalidSignatureFormat
			}
			timestamp = ts
		case "v1":
			signature = kv[1]
		}
	}

	if timestamp == 0 || signature == "" {
		return ErrInvalidSignatureFormat
	}

	if now.Unix()-timestamp > int64(StripeSignatureTolerance.Seconds()) {
		return ErrTimestampTooOld
	}

	signed := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignatureFormat
	}

	if !hmac.Equal(expected, provided) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyFalSignature checks a "sha256=<hex-hmac>" header where the HMAC-SHA256
// is computed over the raw body.
func VerifyFalSignature(payload []byte, header, secret string) error {
	signature, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrInvalidSignatureFormat
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignatureFormat
	}

	if !hmac.Equal(expected, provided) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyReplicateSignature checks a "sha1=<hex-hmac>" header where the
// HMAC-SHA1 is computed over the raw body.
func VerifyReplicateSignature(payload []byte, header, secret string) error {
	signature, ok := strings.CutPrefix(header, "sha1=")
	if !ok {
		return ErrInvalidSignatureFormat
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignatureFormat
	}

	if !hmac.Equal(expected, provided) {
		return ErrSignatureMismatch
	}
	return nil
}

// SignStripePayload produces a header accepted by VerifyStripeSignature.
func SignStripePayload(payload []byte, secret string, at time.Time) string {
	signed := fmt.Sprintf("%d.%s", at.Unix(), payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
