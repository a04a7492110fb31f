package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// ExpectedSignature computes the provider's notification signature:
// sha512 hex of order_id + status_code + gross_amount + server key.
func ExpectedSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a notification's signature_key against the
// recomputed value. The comparison is constant-time; the signature is the
// only thing authenticating a webhook delivery.
func VerifySignature(orderID, statusCode, grossAmount, serverKey, signatureKey string) bool {
	expected := ExpectedSignature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}
