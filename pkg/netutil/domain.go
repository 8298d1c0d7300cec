package netutil

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

const (
	maxDomainNameSize  = 253
	maxDomainLabelSize = 63
)

// ValidateDomainName checks value is a registrable host name: at most 253
// bytes, with no empty or oversized labels, and valid under IDNA
// registration rules.
func ValidateDomainName(value string) error {
	if len(value) == 0 {
		return errors.New("domain name is empty")
	}
	if len(value) > maxDomainNameSize {
		return errors.New("domain name length exceeds limit")
	}

	for _, label := range strings.Split(strings.TrimSuffix(value, "."), ".") {
		if len(label) == 0 || len(label) > maxDomainLabelSize {
			return errors.Errorf("domain name has an invalid label: %q", label)
		}
	}

	if _, err := idna.Registration.ToASCII(value); err != nil {
		return errors.Wrap(err, "domain name is invalid")
	}
	return nil
}
