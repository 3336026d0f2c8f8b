package transcription

import (
	"regexp"
	"strings"
)

// Disfluency fillers the ASR transcribes verbatim. 嗯/呃/唔 are pure
// fillers and go everywhere; 啊 doubles as a sentence particle, so only
// standalone runs (delimited on both sides) are removed.
var (
	fillerRuns   = regexp.MustCompile(`[嗯呃唔]+`)
	standaloneAh = regexp.MustCompile(`(^|[\s，。！？、,.!?])啊+($|[\s，。！？、,.!?])`)
	latinFillers = regexp.MustCompile(`(?i)\b(?:um|uh|erm|hmm)\b[,，]?[ \t]*`)
	repeatPunct  = regexp.MustCompile(`([，。、！？,.!?])[，。、！？,.!?]+`)
	spaceRuns    = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean strips disfluency fillers and collapses the punctuation and
// whitespace they leave behind. A non-empty transcript never cleans
// down to nothing: if removal would empty it, the trimmed original is
// returned unchanged.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	cleaned := fillerRuns.ReplaceAllString(s, "")
	cleaned = latinFillers.ReplaceAllString(cleaned, "")
	cleaned = standaloneAh.ReplaceAllString(cleaned, "$1$2")
	cleaned = repeatPunct.ReplaceAllString(cleaned, "$1")
	cleaned = spaceRuns.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return s
	}
	return cleaned
}
