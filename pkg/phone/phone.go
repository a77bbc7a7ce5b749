// Package phone normalizes lead phone numbers to E.164.
package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers written without a country code
const DefaultRegion = "BR"

// Details describes a parsed phone number
type Details struct {
	E164          string `json:"e164"`
	International string `json:"international"`
	National      string `json:"national"`
	Region        string `json:"region"`
	Mobile        bool   `json:"mobile"`
}

// Normalizer parses numbers relative to a default region
type Normalizer struct {
	region string
}

// NewNormalizer creates a normalizer for region, an ISO 3166 code
func NewNormalizer(region string) *Normalizer {
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// Region returns the default region
func (n *Normalizer) Region() string {
	return n.region
}

// Normalize returns raw in E.164 form. Numbers that parse but are not
// valid for their region are rejected.
func (n *Normalizer) Normalize(raw string) (string, error) {
	parsed, err := n.parse(raw)
	if err != nil {
		return "", err
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// Describe returns every format of raw
func (n *Normalizer) Describe(raw string) (*Details, error) {
	parsed, err := n.parse(raw)
	if err != nil {
		return nil, err
	}

	kind := phonenumbers.GetNumberType(parsed)
	return &Details{
		E164:          phonenumbers.Format(parsed, phonenumbers.E164),
		International: phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL),
		National:      phonenumbers.Format(parsed, phonenumbers.NATIONAL),
		Region:        phonenumbers.GetRegionCodeForNumber(parsed),
		Mobile:        kind == phonenumbers.MOBILE || kind == phonenumbers.FIXED_LINE_OR_MOBILE,
	}, nil
}

func (n *Normalizer) parse(raw string) (*phonenumbers.PhoneNumber, error) {
	if raw == "" {
		return nil, fmt.Errorf("phone number cannot be empty")
	}
	parsed, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return nil, fmt.Errorf("invalid phone number: %s", raw)
	}
	return parsed, nil
}
