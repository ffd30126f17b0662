package model

import (
	"fmt"
	"strings"
)

// Impact is the semantic version increment implied by a change.
type Impact int

const (
	// ImpactNone does not trigger any release
	ImpactNone Impact = iota
	// ImpactPatch bumps the patch number
	ImpactPatch
	// ImpactMinor bumps the minor number
	ImpactMinor
	// ImpactMajor bumps the major number
	ImpactMajor
)

func (i Impact) String() string {
	switch i {
	case ImpactNone:
		return "none"
	case ImpactPatch:
		return "patch"
	case ImpactMinor:
		return "minor"
	case ImpactMajor:
		return "major"
	default:
		return fmt.Sprintf("impact(%d)", int(i))
	}
}

// ParseImpact parses the string representation of an impact
func ParseImpact(s string) (Impact, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ImpactNone, nil
	case "patch":
		return ImpactPatch, nil
	case "minor":
		return ImpactMinor, nil
	case "major":
		return ImpactMajor, nil
	default:
		return ImpactNone, fmt.Errorf("unknown impact: %q", s)
	}
}

// Max returns the largest of the impacts
func Max(impacts ...Impact) Impact {
	max := ImpactNone
	for _, i := range impacts {
		if i > max {
			max = i
		}
	}
	return max
}

// MarshalText renders the impact by name
func (i Impact) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses an impact by name
func (i *Impact) UnmarshalText(text []byte) error {
	v, err := ParseImpact(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
