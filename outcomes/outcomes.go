package outcomes

import "strings"

// Style holds the display colors for an outcome badge.
type Style struct {
	Background string `json:"background"`
	Border     string `json:"border"`
	Text       string `json:"text"`
}

// Sold is the outcome counted toward conversion rate.
const Sold = "sold"

var neutral = Style{Background: "#f1f5f9", Border: "#cbd5e1", Text: "#475569"}

// aliases maps secondary slugs to their canonical outcome. Records written by
// older clients still use the right-hand spellings.
var aliases = map[string]string{
	"callback-later": "callback",
	"meeting-booked": "meeting-scheduled",
}

var styles = map[string]Style{
	"sold":              {Background: "#dcfce7", Border: "#86efac", Text: "#166534"},
	"interested":        {Background: "#dbeafe", Border: "#93c5fd", Text: "#1e40af"},
	"qualified":         {Background: "#e0e7ff", Border: "#a5b4fc", Text: "#3730a3"},
	"meeting-scheduled": {Background: "#f3e8ff", Border: "#d8b4fe", Text: "#6b21a8"},
	"callback":          {Background: "#fef9c3", Border: "#fde047", Text: "#854d0e"},
	"follow-up-email":   {Background: "#cffafe", Border: "#67e8f9", Text: "#155e75"},
	"not-interested":    {Background: "#fee2e2", Border: "#fca5a5", Text: "#991b1b"},
	"do-not-call":       {Background: "#fecaca", Border: "#f87171", Text: "#7f1d1d"},
	"no-answer":         {Background: "#f3f4f6", Border: "#d1d5db", Text: "#4b5563"},
	"voicemail":         {Background: "#ede9fe", Border: "#c4b5fd", Text: "#5b21b6"},
	"busy":              {Background: "#ffedd5", Border: "#fdba74", Text: "#9a3412"},
	"gatekeeper":        {Background: "#fae8ff", Border: "#f0abfc", Text: "#86198f"},
	"wrong-number":      {Background: "#fef2f2", Border: "#fecaca", Text: "#b91c1c"},
	"hung-up":           {Background: "#fff1f2", Border: "#fda4af", Text: "#9f1239"},
	"disconnected":      {Background: "#e5e7eb", Border: "#9ca3af", Text: "#374151"},
}

// positive lists the canonical outcomes the Leads view restricts to.
var positive = []string{"sold", "interested", "qualified", "meeting-scheduled", "callback"}

// Canonical normalizes an outcome slug, folding aliases onto their primary
// spelling. Unknown slugs pass through lowercased and trimmed.
func Canonical(outcome string) string {
	slug := strings.ToLower(strings.TrimSpace(outcome))
	if primary, ok := aliases[slug]; ok {
		return primary
	}
	return slug
}

// Resolve returns the badge style for an outcome. It is total: empty,
// unknown, or aliased input always yields a usable style.
func Resolve(outcome string) Style {
	if style, ok := styles[Canonical(outcome)]; ok {
		return style
	}
	return neutral
}

// Expand returns the selection plus every alias of each selected outcome, so
// a filter on "callback" also matches records stored as "callback-later".
// Order is stable and duplicates are removed.
func Expand(selected []string) []string {
	seen := make(map[string]struct{}, len(selected)*2)
	var out []string
	add := func(slug string) {
		if slug == "" {
			return
		}
		if _, ok := seen[slug]; ok {
			return
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	for _, raw := range selected {
		canonical := Canonical(raw)
		add(canonical)
		for alias, primary := range aliases {
			if primary == canonical {
				add(alias)
			}
		}
	}
	return out
}

// Intersect applies a view restriction to a user selection. With no
// selection the whole restriction applies; with no restriction the selection
// stands alone. Both present means set intersection on canonical slugs: a
// selection entirely outside the restriction yields an empty (match-nothing)
// filter, never the unrestricted set.
func Intersect(restriction, selected []string) []string {
	if len(restriction) == 0 {
		return Expand(selected)
	}
	if len(selected) == 0 {
		return Expand(restriction)
	}
	allowed := make(map[string]struct{}, len(restriction))
	for _, slug := range restriction {
		allowed[Canonical(slug)] = struct{}{}
	}
	var kept []string
	for _, slug := range selected {
		if _, ok := allowed[Canonical(slug)]; ok {
			kept = append(kept, slug)
		}
	}
	if len(kept) == 0 {
		return []string{}
	}
	return Expand(kept)
}

// Positive returns the restriction set used by the Leads view.
func Positive() []string {
	out := make([]string, len(positive))
	copy(out, positive)
	return out
}

// IsPositive reports whether an outcome counts as a positive result.
func IsPositive(outcome string) bool {
	canonical := Canonical(outcome)
	for _, slug := range positive {
		if slug == canonical {
			return true
		}
	}
	return false
}

// TitleCase converts a slug like "not-interested" into "Not Interested".
// Empty input yields an empty string; callers substitute an em-dash.
func TitleCase(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}
	parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}
