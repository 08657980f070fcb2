package readiness

import (
	"fmt"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"

	"schemamap/internal/canonical"
)

const (
	maxNullRatio = 0.5
	minNonNull   = 10
)

// Problem kinds reported by quality checks.
const (
	ProblemMissingValues    = "excessive missing values"
	ProblemTypeIssue        = "type issue"
	ProblemInsufficientData = "insufficient data"
)

// QualityIssue describes why a present column cannot be trusted.
type QualityIssue struct {
	Column  string `json:"column"`
	Problem string `json:"problem"`
	Detail  string `json:"detail"`
}

// String renders the issue for reasons.
func (q QualityIssue) String() string {
	return fmt.Sprintf("%s: %s (%s)", q.Column, q.Problem, q.Detail)
}

var nullTokens = map[string]bool{
	"": true, "null": true, "nil": true, "none": true, "nan": true,
	"n/a": true, "na": true, "-": true, "#n/a": true,
}

func isNull(cell string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(cell))]
}

// CheckColumn runs the quality checks for a column holding type typ.
func CheckColumn(name string, typ canonical.Type, cells []string) []QualityIssue {
	var (
		issues  []QualityIssue
		nonNull []string
	)

	for _, c := range cells {
		if !isNull(c) {
			nonNull = append(nonNull, strings.TrimSpace(c))
		}
	}

	if len(cells) > 0 {
		ratio := 1 - float64(len(nonNull))/float64(len(cells))
		if ratio > maxNullRatio {
			issues = append(issues, QualityIssue{
				Column:  name,
				Problem: ProblemMissingValues,
				Detail:  fmt.Sprintf("%.0f%% empty", ratio*100),
			})
		}
	}

	if failed, kind := coercionFailures(typ, nonNull); failed*2 > len(nonNull) {
		issues = append(issues, QualityIssue{
			Column:  name,
			Problem: ProblemTypeIssue,
			Detail:  fmt.Sprintf("%d of %d values are not %s", failed, len(nonNull), kind),
		})
	}

	if len(nonNull) < minNonNull {
		issues = append(issues, QualityIssue{
			Column:  name,
			Problem: ProblemInsufficientData,
			Detail:  fmt.Sprintf("%d non-null values, need %d", len(nonNull), minNonNull),
		})
	}

	return issues
}

// coercionFailures counts values that do not parse as typ. Types without a
// value shape are never checked.
func coercionFailures(typ canonical.Type, values []string) (int, string) {
	var (
		parse func(string) bool
		kind  string
	)

	switch {
	case typ.Temporal():
		parse, kind = isDate, "dates"
	case typ.Numeric():
		parse, kind = isNumber, "numbers"
	default:
		return 0, ""
	}

	failed := 0

	for _, v := range values {
		if !parse(v) {
			failed++
		}
	}

	return failed, kind
}

func isDate(v string) bool {
	_, err := dateparse.ParseAny(v)

	return err == nil
}

var numberCleaner = strings.NewReplacer(
	",", "", "$", "", "€", "", "£", "", "¥", "", "%", "", " ", "", "\u00a0", "",
)

func isNumber(v string) bool {
	clean := numberCleaner.Replace(v)
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = "-" + clean[1:len(clean)-1]
	}

	_, err := cast.ToFloat64E(clean)

	return err == nil
}
