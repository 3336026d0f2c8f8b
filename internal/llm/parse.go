package llm

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/types"
)

// parseAnalysis turns raw model output into a validated AnalysisResult.
// Models wrap their JSON in prose or fences often enough that the
// content is scanned for the first balanced object before
// unmarshalling, with one repair pass for damaged or truncated JSON.
func parseAnalysis(content string) (types.AnalysisResult, error) {
	candidate := extractJSON(content)
	if candidate == "" {
		return types.AnalysisResult{}, errs.New(errs.KindAnalysisFailure, "response contained no JSON object")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return types.AnalysisResult{}, errs.Wrap(errs.KindAnalysisFailure, "response JSON could not be parsed", err)
		}
		if err := json.Unmarshal([]byte(repaired), &result); err != nil {
			return types.AnalysisResult{}, errs.Wrap(errs.KindAnalysisFailure, "response JSON could not be parsed", err)
		}
	}

	if strings.TrimSpace(result.Hook) == "" ||
		strings.TrimSpace(result.Core) == "" ||
		strings.TrimSpace(result.CTA) == "" {
		return types.AnalysisResult{}, errs.New(errs.KindAnalysisFailure, "response JSON is missing hook, core or cta")
	}
	if result.KeyQuotes == nil {
		result.KeyQuotes = []string{}
	}
	return result, nil
}

// extractJSON returns the first balanced JSON object in s, stripping
// markdown fences first. An unbalanced tail (max_tokens truncation) is
// returned as-is for the repair pass to finish.
func extractJSON(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```", "`"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return strings.TrimSpace(s[start:])
}
