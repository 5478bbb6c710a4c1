package classify

import "regexp"

// pattern is one structural personal-information matcher
type pattern struct {
	kind string
	re   *regexp.Regexp
}

// piiPatterns is evaluated in this order; the order fixes the transcript.
var piiPatterns = []pattern{
	{kind: "Email", re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{kind: "Phone", re: regexp.MustCompile(`(?:\(\d{3}\)\s*\d{3}[-.]?\d{4}|\b\d{3}[-.]?\d{3}[-.]?\d{4})\b`)},
	{kind: "National Identifier", re: regexp.MustCompile(`\b\d{3}-\d{2,3}-\d{3,4}\b`)},
	{kind: "Account Number", re: regexp.MustCompile(`(?i)\b(?:account|acct|patient)\s*#?\s*:?\s*[A-Z0-9]{5,}\b`)},
	{kind: "Date of Birth", re: regexp.MustCompile(`(?i)\b(?:dob|date of birth|born)[\s:]+\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)},
}

// PatternKinds returns the structural matcher kinds in scan order
func PatternKinds() []string {
	kinds := make([]string, len(piiPatterns))
	for i, p := range piiPatterns {
		kinds[i] = p.kind
	}
	return kinds
}
