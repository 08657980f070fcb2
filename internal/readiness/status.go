package readiness

//go:generate go tool stringer -type=Status -linecomment -output=status_string.go

// Status summarizes one analytic's readiness.
type Status int

const (
	StatusReady          Status = iota // ready
	StatusMissingColumns               // missing_columns
	StatusQualityIssues                // quality_issues
)

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
