package domain

import (
	"regexp"
	"strings"
)

var msisdnPattern = regexp.MustCompile(`^254(7|1)\d{8}$`)

// NormalizeMSISDN converts a Kenyan mobile number to the 2547XXXXXXXX or
// 2541XXXXXXXX form the payment provider expects.
func NormalizeMSISDN(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	p = strings.TrimPrefix(p, "+")
	switch {
	case strings.HasPrefix(p, "0") && len(p) == 10:
		p = "254" + p[1:]
	case len(p) == 9 && (p[0] == '7' || p[0] == '1'):
		p = "254" + p
	}
	if !msisdnPattern.MatchString(p) {
		return "", Validationf("phone %q is not a valid Safaricom number", phone)
	}
	return p, nil
}
