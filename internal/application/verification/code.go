package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const (
	codeMin = 100000
	codeMax = 999999
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// GenerateCode returns a 6-digit code drawn uniformly from [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

func validCode(code string) bool {
	return codePattern.MatchString(code)
}

// expiryLabel renders a TTL the way it appears in the email ("5 minutes").
func expiryLabel(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int(ttl/time.Hour), "hour")
	case ttl >= time.Minute && ttl%time.Minute == 0:
		return plural(int(ttl/time.Minute), "minute")
	default:
		return plural(int(ttl.Round(time.Second)/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
