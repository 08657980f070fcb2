package escalation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"schemamap/internal/canonical"
)

var (
	// ErrEmptyResponse is returned when the model replies with nothing.
	ErrEmptyResponse = eris.New("escalation: empty response")
	// ErrNoJSON is returned when no well-formed JSON object can be found.
	ErrNoJSON = eris.New("escalation: no JSON object in response")
)

// Suggestion is one validated entry of a model reply.
type Suggestion struct {
	Original string
	Type     canonical.Type
	// Confidence is on the 0-100 scale, clamped.
	Confidence float64
	Reason     string
}

type response struct {
	Mappings []map[string]any `json:"mappings"`
}

func stripMarkdownCodeFences(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			continue
		}

		out = append(out, ln)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// ExtractJSON returns the first well-formed JSON object in a model reply.
// Code fences and surrounding prose are tolerated; braces inside JSON
// strings do not confuse the scan.
func ExtractJSON(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if s == "" {
		return "", ErrEmptyResponse
	}

	s = stripMarkdownCodeFences(s)

	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(s[i:]))
		dec.UseNumber()

		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return string(raw), nil
		}
	}

	return "", ErrNoJSON
}

// ParseReply extracts and validates the suggestions for a batch. Entries
// whose original header is not in the batch, whose field is not in the
// vocabulary, or that miss a required key are dropped and counted. Only
// the first entry per header is kept. A reply without a parsable object or
// without a mappings array is an error.
func ParseReply(reply string, batch []string) ([]Suggestion, int, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, 0, err
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var resp response
	if err := dec.Decode(&resp); err != nil {
		return nil, 0, eris.Wrap(err, "decode mappings")
	}

	if resp.Mappings == nil {
		return nil, 0, eris.New("escalation: reply has no mappings array")
	}

	known := make(map[string]string, len(batch))
	for _, h := range batch {
		known[h] = h
		if _, ok := known[strings.TrimSpace(h)]; !ok {
			known[strings.TrimSpace(h)] = h
		}
	}

	var (
		out     []Suggestion
		dropped int
		seen    = make(map[string]bool, len(batch))
	)

	for _, item := range resp.Mappings {
		s, ok := validate(item, known)
		if !ok || seen[s.Original] {
			dropped++

			continue
		}

		seen[s.Original] = true
		out = append(out, s)
	}

	return out, dropped, nil
}

func validate(item map[string]any, known map[string]string) (Suggestion, bool) {
	original, ok := item["original"].(string)
	if !ok {
		return Suggestion{}, false
	}

	header, ok := known[original]
	if !ok {
		if header, ok = known[strings.TrimSpace(original)]; !ok {
			return Suggestion{}, false
		}
	}

	field, ok := item["mapped_to"].(string)
	if !ok {
		return Suggestion{}, false
	}

	typ, ok := canonical.Parse(field)
	if !ok {
		return Suggestion{}, false
	}

	conf, ok := number(item["confidence"])
	if !ok {
		return Suggestion{}, false
	}

	reason, _ := item["reason"].(string)

	return Suggestion{
		Original:   header,
		Type:       typ,
		Confidence: min(max(conf, 0), 100),
		Reason:     reason,
	}, true
}

// number accepts JSON numbers and numeric strings ("85", "85%").
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)

		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

// String implements fmt.Stringer for logs.
func (s Suggestion) String() string {
	return fmt.Sprintf("%s -> %s (%.0f)", s.Original, s.Type, s.Confidence)
}
