package dedup

import "strings"

// edgePunctuation is the fixed set of punctuation stripped from both ends
// of a submission after case folding and whitespace trimming.
const edgePunctuation = ".,!?;:\"'"

// Normalize derives the dedup key for a submission: lower-case, trim outer
// whitespace, then strip any run of edge punctuation from both ends.
// Normalize is pure and idempotent.
func Normalize(text string) string {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(cleaned, edgePunctuation)
}
