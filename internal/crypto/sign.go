package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// HMACSHA256Hex computes HMAC-SHA256 of message using key and returns the
// uppercase hex digest. This is the signature scheme CEX.IO expects for
// private calls (message = nonce + user ID + API key).
func HMACSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// KrakenSign computes the Kraken API-Sign header: HMAC-SHA512 over
// path + SHA256(nonce + postdata), keyed with the base64-decoded API secret,
// returned base64-encoded.
func KrakenSign(secretB64, path, nonce, postdata string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return "", err
	}

	inner := sha256.Sum256([]byte(nonce + postdata))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(inner[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
