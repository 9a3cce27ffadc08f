// internal/utils/signature_test.go
package utils

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Now()

	t.Run("valid signature", func(t *testing.T) {
		header := SignStripePayload(payload, secret, now)
		assert.NoError(t, verifyStripeSignatureAt(payload, header, secret, now))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := SignStripePayload(payload, "whsec_other", now)
		err := verifyStripeSignatureAt(payload, header, secret, now)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := SignStripePayload(payload, secret, now)
		err := verifyStripeSignatureAt([]byte(`{"type":"evil"}`), header, secret, now)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("timestamp outside tolerance", func(t *testing.T) {
		signedAt := now.Add(-StripeSignatureTolerance - time.Second)
		header := SignStripePayload(payload, secret, signedAt)
		err := verifyStripeSignatureAt(payload, header, secret, now)
		assert.ErrorIs(t, err, ErrTimestampTooOld)
	})

	t.Run("timestamp at tolerance boundary", func(t *testing.T) {
		signedAt := now.Add(-StripeSignatureTolerance)
		header := SignStripePayload(payload, secret, signedAt)
		assert.NoError(t, verifyStripeSignatureAt(payload, header, secret, now))
	})

	t.Run("malformed headers", func(t *testing.T) {
		for _, header := range []string{
			"",
			"v1=abc",
			"t=123",
			"t=notanumber,v1=abc",
			fmt.Sprintf("t=%d,v1=zzzz", now.Unix()),
		} {
			err := verifyStripeSignatureAt(payload, header, secret, now)
			assert.ErrorIs(t, err, ErrInvalidSignatureFormat, "header %q", header)
		}
	})
}

func TestVerifyFalSignature(t *testing.T) {
	payload := []byte(`{"request_id":"job-1","status":"completed"}`)
	secret := "fal_secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	header := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, VerifyFalSignature(payload, header, secret))
	assert.ErrorIs(t, VerifyFalSignature(payload, header, "wrong"), ErrSignatureMismatch)
	assert.ErrorIs(t, VerifyFalSignature(payload, "sha1=abcd", secret), ErrInvalidSignatureFormat)
	assert.ErrorIs(t, VerifyFalSignature(payload, "", secret), ErrInvalidSignatureFormat)
}

func TestVerifyReplicateSignature(t *testing.T) {
	payload := []byte(`{"id":"pred-1","status":"succeeded"}`)
	secret := "replicate_secret"

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	header := "sha1=" + hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, VerifyReplicateSignature(payload, header, secret))
	assert.ErrorIs(t, VerifyReplicateSignature(payload, header, "wrong"), ErrSignatureMismatch)
	assert.ErrorIs(t, VerifyReplicateSignature(payload, "sha256=abcd", secret), ErrInvalidSignatureFormat)
}
