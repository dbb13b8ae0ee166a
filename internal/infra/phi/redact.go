// Package phi removes protected health information from letter text before it leaves the
// process. Redaction is pattern based and errs on the side of removing too much.
package phi

import (
	"regexp"
	"sort"
)

// Kind names a category of redacted identifier.
type Kind string

const (
	KindSSN    Kind = "SSN"
	KindVAFile Kind = "VA_FILE"
	KindMRN    Kind = "MRN"
	KindEmail  Kind = "EMAIL"
	KindPhone  Kind = "PHONE"
	KindDOB    Kind = "DOB"
	KindName   Kind = "NAME"
)

type pattern struct {
	kind Kind
	re   *regexp.Regexp
	// keep is the number of leading submatches kept verbatim (labels such as "DOB:").
	keep bool
}

// Order matters: labelled identifiers run before the bare number patterns that would
// otherwise consume them.
var patterns = []pattern{
	{kind: KindVAFile, re: regexp.MustCompile(`(?i)(\b(?:VA\s+)?(?:file|claim)\s*(?:no\.?|number|#)?\s*:?\s*)[A-Z]?\d{8,9}\b`), keep: true},
	{kind: KindMRN, re: regexp.MustCompile(`(?i)(\b(?:MRN|medical\s+record\s+(?:no\.?|number|#))\s*:?\s*)[A-Z0-9-]{5,}\b`), keep: true},
	{kind: KindDOB, re: regexp.MustCompile(`(?i)(\b(?:DOB|D\.O\.B\.|date\s+of\s+birth)\s*:?\s*)\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`), keep: true},
	{kind: KindName, re: regexp.MustCompile(`((?:^|\b)(?:Patient|Veteran|Claimant|Name|Re)\s*:\s*)[A-Z][a-zA-Z'\-]+(?:\s+[A-Z]\.?)?(?:\s+[A-Z][a-zA-Z'\-]+){0,2}`), keep: true},
	{kind: KindSSN, re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{kind: KindEmail, re: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{kind: KindPhone, re: regexp.MustCompile(`(?:\+?1[\s.-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.-])\d{3}[\s.-]\d{4}\b`)},
}

// Result is the outcome of Redact.
type Result struct {
	Text   string
	Counts map[Kind]int
}

// Total returns the number of redactions.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Kinds returns the redacted kinds in sorted order.
func (r Result) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Token returns the placeholder that replaces identifiers of kind k.
func Token(k Kind) string {
	return "[REDACTED_" + string(k) + "]"
}

// Redact replaces every identifier found in text with its placeholder token.
func Redact(text string) Result {
	counts := make(map[Kind]int)
	for _, p := range patterns {
		token := Token(p.kind)
		text = p.re.ReplaceAllStringFunc(text, func(match string) string {
			counts[p.kind]++
			if p.keep {
				sub := p.re.FindStringSubmatch(match)
				if len(sub) > 1 {
					return sub[1] + token
				}
			}
			return token
		})
	}
	return Result{Text: text, Counts: counts}
}
