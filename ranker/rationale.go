package ranker

import (
	"fmt"
	"sort"
	"strings"
)

// maxRationaleLen is the wire contract's hard cap on reason strings.
const maxRationaleLen = 140

// buildRationale formats the top two terms by weighted contribution,
// citing each term's feature value, e.g. `"face 0.72, keyword 'goal'"`.
// Unavailable terms are never cited. If no term contributes, "no-data"
// is returned.
func buildRationale(terms []term, topKeyword, topObject string) string {
	type contribution struct {
		name    string
		value   float64
		contrib float64
	}
	var contribs []contribution
	for _, t := range terms {
		if !t.available {
			continue
		}
		contribs = append(contribs, contribution{t.name, t.value, t.value * t.weight})
	}
	if len(contribs) == 0 {
		return "no-data"
	}

	sort.Slice(contribs, func(i, j int) bool { return contribs[i].contrib > contribs[j].contrib })
	if len(contribs) > 2 {
		contribs = contribs[:2]
	}

	parts := make([]string, 0, len(contribs))
	for _, c := range contribs {
		switch {
		case c.name == "keyword" && topKeyword != "":
			parts = append(parts, fmt.Sprintf("keyword '%s'", topKeyword))
		case c.name == "subject" && topObject != "":
			parts = append(parts, fmt.Sprintf("subject '%s'", topObject))
		default:
			parts = append(parts, fmt.Sprintf("%s %.2f", c.name, c.value))
		}
	}

	reason := strings.Join(parts, ", ")
	if len(reason) > maxRationaleLen {
		reason = reason[:maxRationaleLen]
	}
	return reason
}
