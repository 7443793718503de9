// Package classify maps a stated request need to an intake category.
package classify

import (
	"errors"
	"strings"
	"unicode"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// ErrUnclassified is returned by Must when the signal does not resolve to a
// single category.
var ErrUnclassified = errors.New("request type unclassified")

type keyword struct {
	phrase string
	weight int
}

// Dashboard mentions outweigh everything else: dashboard changes, new or
// existing, belong to the dashboard collector.
var keywordBuckets = map[intake.Category][]keyword{
	intake.Report: {
		{"report", 2}, {"reports", 2}, {"one off", 3}, {"ad hoc", 3}, {"analysis", 1},
		{"numbers", 1}, {"breakdown", 1}, {"export", 1}, {"spreadsheet", 1}, {"deck", 1},
	},
	intake.Dashboard: {
		{"dashboard", 6}, {"dashboards", 6}, {"visualization", 2}, {"visualisation", 2},
		{"tableau", 2}, {"looker", 2}, {"power bi", 2}, {"chart", 1}, {"charts", 1}, {"kpi", 1},
	},
	intake.Update: {
		{"update", 3}, {"updates", 3}, {"updating", 3}, {"modify", 3}, {"revise", 3},
		{"existing", 2}, {"tweak", 2}, {"change", 1}, {"changes", 1}, {"add a column", 2},
	},
}

// Classify maps signal to a category, or intake.Unclassified when it matches
// nothing or two categories score equally.
func Classify(signal string) intake.Category {
	if c, ok := intake.ParseCategory(signal); ok {
		return c
	}

	normalized := normalize(signal)
	if strings.TrimSpace(normalized) == "" {
		return intake.Unclassified
	}

	best, bestScore, tied := intake.Unclassified, 0, false
	for _, c := range intake.Categories() {
		score := 0
		for _, kw := range keywordBuckets[c] {
			if strings.Contains(normalized, " "+kw.phrase+" ") {
				score += kw.weight
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = c, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return intake.Unclassified
	}
	return best
}

// Must is Classify with an error for the unclassified case.
func Must(signal string) (intake.Category, error) {
	c := Classify(signal)
	if c == intake.Unclassified {
		return c, ErrUnclassified
	}
	return c, nil
}

// normalize lowercases signal, turns punctuation into spaces and pads it so
// phrases can be matched on word boundaries.
func normalize(signal string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, signal)
	return " " + strings.Join(strings.Fields(mapped), " ") + " "
}
