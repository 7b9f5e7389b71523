package orchestrator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

const seaterPlaceholder = "seater"

var (
	seaterPattern      = regexp.MustCompile(`(?i)^(\d+)[\s_-]?(seater|seat|person)$`)
	seaterShortPattern = regexp.MustCompile(`(?i)^(\d+)str$`)
	sizePattern        = regexp.MustCompile(`(?i)^(\d+)\s?(inch|ft|feet|cm)$`)
	bareIntPattern     = regexp.MustCompile(`^\d+$`)
)

// ExtractNumerics pulls seater counts and sizes out of the token stream.
// Seater tokens are replaced by a single "seater" placeholder, size tokens are
// dropped, and a bare integer between 1 and 10 is read as a seater count.
// The last seater or size seen wins. On failure the input is returned with
// empty numerics.
func ExtractNumerics(tokens []string) (out []string, numerics models.Numerics) {
	defer func() {
		if r := recover(); r != nil {
			out = tokens
			numerics = models.Numerics{}
		}
	}()

	out = make([]string, 0, len(tokens))
	placeholder := false
	emitSeater := func(n int) {
		numerics.Seater = &n
		if !placeholder {
			out = append(out, seaterPlaceholder)
			placeholder = true
		}
	}

	for _, tok := range tokens {
		if n, ok := matchSeater(tok); ok {
			emitSeater(n)
			continue
		}

		if m := sizePattern.FindStringSubmatch(tok); m != nil {
			v, err := strconv.Atoi(m[1])
			if err == nil {
				numerics.Size = &models.Size{Value: v, Unit: strings.ToLower(m[2])}
				continue
			}
		}

		if bareIntPattern.MatchString(tok) {
			if v, err := strconv.Atoi(tok); err == nil && v >= 1 && v <= 10 {
				emitSeater(v)
				continue
			}
		}

		if tok == seaterPlaceholder {
			if placeholder {
				continue
			}
			placeholder = true
		}
		out = append(out, tok)
	}
	return out, numerics
}

func matchSeater(tok string) (int, bool) {
	m := seaterPattern.FindStringSubmatch(tok)
	if m == nil {
		m = seaterShortPattern.FindStringSubmatch(tok)
	}
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
