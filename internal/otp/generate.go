package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// mintOtp6 returns a 6-digit decimal string uniform in [100000, 999999]
// (spec §4.2).
func mintOtp6() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// MaskRecipient masks an email or phone for audit payloads (spec §4.8
// Start OTP: "first 2 chars + *** + last 2/domain").
func MaskRecipient(recipient string) string {
	for i, c := range recipient {
		if c == '@' {
			local, domain := recipient[:i], recipient[i:]
			if len(local) <= 4 {
				return local[:1] + "***" + domain
			}
			return local[:2] + "***" + local[len(local)-2:] + domain
		}
	}
	if len(recipient) <= 4 {
		return recipient[:1] + "***"
	}
	return recipient[:2] + "***" + recipient[len(recipient)-2:]
}
