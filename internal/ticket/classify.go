package ticket

import (
	"regexp"
	"strings"
)

// Verdict is the classifier's decision about a piece of OCR text.
// DetectedContent is only set on rejection and is a best-effort,
// human-readable guess at what the image actually contains. It is meant for
// user feedback, never for control flow.
type Verdict struct {
	IsTicket        bool
	DetectedContent string
}

var (
	amountRe    = regexp.MustCompile(`(?:^|\s)` + amountToken + `\s*(?:€|EUR|\$|USD)?\s*$`)
	emailHeadRe = regexp.MustCompile(`(?i)^(from|to|subject|dear|de|para|asunto|estimad[oa])\b`)
	urlRe       = regexp.MustCompile(`(?i)https?://|www\.`)
	codeRe      = regexp.MustCompile(`[{};]|\bfunc\b|\bdef\b|\bclass\b`)
)

// Classify decides whether raw OCR text plausibly represents a purchase
// receipt. It is a pure function and never fails: absence of signal degrades
// to a rejection.
func Classify(rawText string) Verdict {
	lines := nonEmptyLines(rawText)
	if len(lines) == 0 {
		return Verdict{DetectedContent: "an image with no readable text"}
	}

	var (
		pricedLines int
		totalLabel  bool
		emailLines  int
		urlLines    int
		codeLines   int
		longProse   int
	)
	for _, line := range lines {
		folded := fold(line)
		if amountRe.MatchString(line) {
			pricedLines++
		}
		if labelRe.MatchString(folded) {
			totalLabel = true
		}
		if emailHeadRe.MatchString(line) {
			emailLines++
		}
		if urlRe.MatchString(line) {
			urlLines++
		}
		if codeRe.MatchString(line) {
			codeLines++
		}
		if len(line) > 60 && strings.Count(line, " ") > 8 {
			longProse++
		}
	}

	// Contra-indicators outweigh weak price signals: an invoice email or a
	// screenshot of a shop page can contain amounts too.
	contra := emailLines >= 2 || codeLines >= 3 ||
		urlLines > len(lines)/3 || longProse > len(lines)/2

	if !contra && (pricedLines >= 2 || (pricedLines >= 1 && totalLabel)) {
		return Verdict{IsTicket: true}
	}

	return Verdict{DetectedContent: describe(emailLines, urlLines, codeLines, longProse, pricedLines)}
}

func describe(emailLines, urlLines, codeLines, longProse, pricedLines int) string {
	switch {
	case emailLines >= 2:
		return "an email or letter"
	case codeLines >= 3:
		return "source code or a technical document"
	case urlLines > 0:
		return "a web page or screenshot"
	case longProse > 0:
		return "a text document"
	case pricedLines > 0:
		return "a document with prices that does not look like a purchase receipt"
	default:
		return "an image with no readable receipt content"
	}
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
