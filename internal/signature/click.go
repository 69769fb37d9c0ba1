// Package signature implements the deterministic digests used by the Click
// callback and merchant APIs. Mismatches are an expected steady-state
// outcome (replays, probing), so verification returns a bool and never an
// error.
package signature

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"
)

// Fields carries the callback fields that enter the digest, in the raw
// string form they arrived in. Amount in particular must be hashed exactly
// as received ("5555.00"), not re-formatted.
type Fields struct {
	TransID         string
	ServiceID       string
	MerchantTransID string
	PrepareID       string
	Amount          string
	Action          string
	SignTime        string
}

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// VerifyPrepare checks the prepare-phase digest:
// md5(trans_id + service_id + secret + merchant_trans_id + amount + action + sign_time).
func (v *Verifier) VerifyPrepare(f Fields, signString string) bool {
	concat := f.TransID + f.ServiceID + v.secret + f.MerchantTransID + f.Amount + f.Action + f.SignTime
	return digestEqual(concat, signString)
}

// VerifyComplete checks the complete-phase digest, which additionally
// covers the prepare id returned by our prepare response.
func (v *Verifier) VerifyComplete(f Fields, signString string) bool {
	concat := f.TransID + f.ServiceID + v.secret + f.MerchantTransID + f.PrepareID + f.Amount + f.Action + f.SignTime
	return digestEqual(concat, signString)
}

func digestEqual(concat, signString string) bool {
	sum := fmt.Sprintf("%x", md5.Sum([]byte(concat)))
	return strings.EqualFold(sum, strings.TrimSpace(signString))
}

// AuthHeader builds the Click merchant-API Auth header value:
// "user_id:md5(user_id + timestamp + secret):timestamp".
func AuthHeader(merchantUserID, secret string, now time.Time) string {
	ts := fmt.Sprintf("%d", now.Unix())
	sum := fmt.Sprintf("%x", md5.Sum([]byte(merchantUserID+ts+secret)))
	return fmt.Sprintf("%s:%s:%s", merchantUserID, sum, ts)
}
