package issue

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
)

// Severity ranks findings. The zero value means "use the rule's default".
type Severity int

const (
	Unspecified Severity = iota
	Low
	Medium
	High
)

var severityNames = map[Severity]string{
	Unspecified: "UNSPECIFIED",
	Low:         "LOW",
	Medium:      "MEDIUM",
	High:        "HIGH",
}

// Severities lists the reportable levels from lowest to highest.
func Severities() []Severity {
	return []Severity{Low, Medium, High}
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// IsValid reports whether s is one of the declared levels.
func (s Severity) IsValid() bool {
	_, ok := severityNames[s]
	return ok
}

// AtLeast reports whether s is at least as severe as floor.
func (s Severity) AtLeast(floor Severity) bool {
	return s >= floor
}

// ParseSeverity accepts the level names case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "UNSPECIFIED":
		return Unspecified, nil
	case "LOW":
		return Low, nil
	case "MEDIUM":
		return Medium, nil
	case "HIGH":
		return High, nil
	}
	return Unspecified, fmt.Errorf("%w: %q (must be low, medium or high)", sharedErrors.ErrInvalidSeverity, s)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", sharedErrors.ErrInvalidSeverity, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
