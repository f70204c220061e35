package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFallback_NonPositiveScoreUsesFixedFallbackStrings(t *testing.T) {
	s := LLMScore{Score: 0, EvidenceEN: "model said something", TLDREN: "a tldr"}
	s.ApplyFallback()

	assert.Equal(t, FallbackEvidenceEN, s.EvidenceEN)
	assert.Equal(t, FallbackEvidenceCN, s.EvidenceCN)
	assert.Equal(t, FallbackEvidenceEN, s.TLDREN)
	assert.Equal(t, FallbackEvidenceCN, s.TLDRCN)
}

func TestApplyFallback_PositiveScoreWithBlankTLDRFallsBackToEvidence(t *testing.T) {
	s := LLMScore{
		Score:      8.5,
		EvidenceEN: "matches requirement on graph neural networks",
		EvidenceCN: "匹配图神经网络需求",
	}
	s.ApplyFallback()

	assert.Equal(t, "matches requirement on graph neural networks", s.TLDREN)
	assert.Equal(t, "匹配图神经网络需求", s.TLDRCN)
}

func TestApplyFallback_PositiveScoreWithTLDRPreservesIt(t *testing.T) {
	s := LLMScore{
		Score:      8.5,
		EvidenceEN: "evidence",
		EvidenceCN: "证据",
		TLDREN:     "short summary",
		TLDRCN:     "简短总结",
	}
	s.ApplyFallback()

	assert.Equal(t, "short summary", s.TLDREN)
	assert.Equal(t, "简短总结", s.TLDRCN)
}
