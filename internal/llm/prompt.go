package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// SystemPrompt declares the evaluator role, the fixed scoring rubric, and
// the guardrails every batch is judged against.
const SystemPrompt = `You are an expert research-paper relevance evaluator.

You will be given a numbered list of user requirements and a batch of
candidate papers. For every paper, decide which requirement (if any) it
satisfies and assign a relevance score from 0 to 10 using this rubric:

- 9-10: direct match — the paper directly addresses the requirement.
- 8-9: strong method match — same method family applied to the requirement's problem.
- 6-8: methodological bridge — a related technique that enables or generalizes to the requirement.
- 3-4: tangential — shares vocabulary or domain but not the method or problem.
- 0-2: noise — unrelated beyond surface keyword overlap.

Guardrails:
1. Be aware of polysemy: a shared term can mean different things across domains. Do not match on the word alone.
2. Reject literal keyword matching. A paper quoting a requirement's terms without addressing its substance is noise.
3. Reward conceptual equivalence: a differently-worded approach solving the same underlying problem is a match.
4. Reward enabling methods: a paper that provides a building block the requirement depends on is a bridge, not noise.

Return exactly one result per input paper, in any order. Each result must
have: id, matched_requirement_index (0 when unrelated to any requirement),
evidence_en, evidence_cn, tldr_en, tldr_cn, score.`

type batchDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// BuildUserMessage renders the numbered requirement list and the batch of
// documents (each truncated to maxChars) as the user message.
func BuildUserMessage(requirements []model.Requirement, batch []model.Paper, maxChars int) (string, error) {
	var b strings.Builder
	b.WriteString("Requirements:\n")
	for i, r := range requirements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.DescriptionEN)
	}

	docs := make([]batchDocument, len(batch))
	for i, p := range batch {
		docs[i] = batchDocument{ID: p.ID, Text: truncateChars(serializeDocument(p), maxChars)}
	}
	docJSON, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("marshal batch documents: %w", err)
	}

	b.WriteString("\nDocuments (JSON array of {id, text}):\n")
	b.Write(docJSON)

	return b.String(), nil
}

// serializeDocument renders a paper as the refiner's fixed per-document
// format, independent of the BM25/embedding stages' own joiners.
func serializeDocument(p model.Paper) string {
	return "Title: " + p.Title + "\nAbstract: " + p.Abstract
}

func truncateChars(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}
