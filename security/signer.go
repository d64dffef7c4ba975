package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cavendo/go-dispatch/core"
)

const signaturePrefix = "sha256="

// HMACSigner produces the outbound webhook signature headers and verifies
// inbound ones. The signed message is "{timestamp}.{body}" with the unix
// timestamp in seconds, so a receiver can reject stale deliveries before
// touching the body.
type HMACSigner struct {
	SignatureHeader string
	TimestampHeader string
}

func NewHMACSigner(signatureHeader, timestampHeader string) *HMACSigner {
	if strings.TrimSpace(signatureHeader) == "" {
		signatureHeader = "X-Cavendo-Signature"
	}
	if strings.TrimSpace(timestampHeader) == "" {
		timestampHeader = "X-Cavendo-Timestamp"
	}
	return &HMACSigner{
		SignatureHeader: signatureHeader,
		TimestampHeader: timestampHeader,
	}
}

// SignatureHeaders returns the headers to attach to a signed delivery.
func (s *HMACSigner) SignatureHeaders(secret string, timestamp time.Time, body []byte) map[string]string {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	return map[string]string{
		s.SignatureHeader: signaturePrefix + s.sign(secret, ts, body),
		s.TimestampHeader: ts,
	}
}

// Verify checks a received signature against the recomputed one. A missing
// or malformed signature reports false, never an error, and the comparison
// is constant time.
func (s *HMACSigner) Verify(secret string, timestamp string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	if signature == "" {
		return false
	}
	expected := s.sign(secret, strings.TrimSpace(timestamp), body)
	if len(expected) != len(signature) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (s *HMACSigner) sign(secret string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ core.PayloadSigner = (*HMACSigner)(nil)
