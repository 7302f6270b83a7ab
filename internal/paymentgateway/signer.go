package paymentgateway

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
)

// SignPayload base64-encodes payload and signs the encoded string. The
// returned data is exactly what must be transmitted: the signature covers
// those bytes and no re-serialization of payload.
func SignPayload(secret string, payload []byte) (data, signature string) {
	data = base64.StdEncoding.EncodeToString(payload)
	return data, Sign(secret, data)
}

// Sign computes base64(SHA1(secret + data + secret)) over the raw digest.
func Sign(secret, data string) string {
	sum := sha1.Sum([]byte(secret + data + secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func VerifySignature(secret, data, signature string) bool {
	expected := Sign(secret, data)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// BearerToken is the credential presented as-is to gateways that authenticate
// with a merchant id and secret pair.
func BearerToken(merchantID, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(merchantID + ":" + secret))
}
