package service

import (
	"fmt"

	"github.com/Harshitk-cp/concord/internal/detect"
	"github.com/Harshitk-cp/concord/internal/domain"
)

const (
	AnalyticalConfidence = 0.8
	IntuitiveConfidence  = 0.7
	PracticalConfidence  = 0.85
	// PerspectiveConflictGap is the confidence spread above which two perspectives
	// are treated as contradicting each other.
	PerspectiveConflictGap = 0.3
)

// DefaultPerspectives returns the analytical, intuitive and practical generators.
// Reasoning strings describe the content by counts and never quote it, so feeding
// them into a cycle cannot re-introduce the content's own contradictions.
func DefaultPerspectives(a domain.TextAnalyzer) []domain.PerspectiveGenerator {
	return []domain.PerspectiveGenerator{
		analyticalPerspective(a),
		intuitivePerspective(a),
		practicalPerspective(a),
	}
}

func analyticalPerspective(a domain.TextAnalyzer) domain.PerspectiveGenerator {
	return func(content string) domain.Perspective {
		claims := a.ExtractClaims(content)
		var evidence []string
		cited := 0
		for _, cl := range claims {
			if len(cl.Sources) > 0 {
				cited++
				evidence = append(evidence, cl.Sources...)
			}
		}
		return domain.Perspective{
			Viewpoint:  "analytical",
			Reasoning:  fmt.Sprintf("analytical reading finds %d causal claims and %d with cited evidence", len(claims), cited),
			Confidence: AnalyticalConfidence,
			Evidence:   evidence,
		}
	}
}

func intuitivePerspective(a domain.TextAnalyzer) domain.PerspectiveGenerator {
	return func(content string) domain.Perspective {
		gaps := a.DetectGaps(content)
		evidence := make([]string, 0, len(gaps))
		for _, g := range gaps {
			evidence = append(evidence, g.Context)
		}
		return domain.Perspective{
			Viewpoint:  "intuitive",
			Reasoning:  fmt.Sprintf("intuitive reading sees %d statements and %d uncertainty markers", len(detect.SplitSentences(content)), len(gaps)),
			Confidence: IntuitiveConfidence,
			Evidence:   evidence,
		}
	}
}

func practicalPerspective(a domain.TextAnalyzer) domain.PerspectiveGenerator {
	return func(content string) domain.Perspective {
		claims := a.ExtractClaims(content)
		evidence := make([]string, 0, len(claims))
		for _, cl := range claims {
			evidence = append(evidence, cl.Conclusion)
		}
		return domain.Perspective{
			Viewpoint:  "practical",
			Reasoning:  fmt.Sprintf("practical reading counts %d outcomes to act on", len(claims)),
			Confidence: PracticalConfidence,
			Evidence:   evidence,
		}
	}
}

// perspectiveConflicts pairs perspectives whose confidence differs by more than
// PerspectiveConflictGap.
func perspectiveConflicts(ps []domain.Perspective) []domain.Candidate {
	var out []domain.Candidate
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			gap := ps[i].Confidence - ps[j].Confidence
			if gap < 0 {
				gap = -gap
			}
			if gap <= PerspectiveConflictGap {
				continue
			}
			out = append(out, domain.Candidate{
				Kind: domain.ContradictionPerspective,
				Description: fmt.Sprintf("confidence gap between %s (%.2f) and %s (%.2f)",
					ps[i].Viewpoint, ps[i].Confidence, ps[j].Viewpoint, ps[j].Confidence),
				StatementA: ps[i].Reasoning,
				StatementB: ps[j].Reasoning,
			})
		}
	}
	return out
}
