package model

// QueryType distinguishes a keyword-derived query from an intent-query-derived one.
type QueryType string

const (
	QueryTypeKeyword     QueryType = "keyword"
	QueryTypeIntentQuery QueryType = "intent_query"
)

// QueryTerm is one weighted term contributed to a BM25 query, either the
// main expression (weight 1.0) or one of its optional paraphrases (weight 0.5).
type QueryTerm struct {
	Term     string  `json:"term"`
	Weight   float64 `json:"weight"`
	SoftOr   bool    `json:"soft_or,omitempty"`
}

// BooleanExpr carries the hard-filter structure of a keyword query, honored
// only when keyword_recall_mode is boolean_mixed.
type BooleanExpr struct {
	MustHave []string `json:"must_have,omitempty"`
	Optional []string `json:"optional,omitempty"`
	Exclude  []string `json:"exclude,omitempty"`
}

// IsEmpty reports whether the expression carries no hard-filter terms.
func (b BooleanExpr) IsEmpty() bool {
	return len(b.MustHave) == 0 && len(b.Optional) == 0 && len(b.Exclude) == 0
}

// Query is one entry in a QueryPlan, consumed identically by BM25Retriever
// and EmbeddingRetriever (the two retrievers read different fields:
// QueryTerms/BooleanExpr for BM25, QueryText for embeddings).
type Query struct {
	Type            QueryType   `json:"type"`
	PaperTag        string      `json:"paper_tag"`
	QueryText       string      `json:"query_text"`
	QueryTerms      []QueryTerm `json:"query_terms,omitempty"`
	BooleanExpr     BooleanExpr `json:"boolean_expr,omitempty"`
	ProfileID       string      `json:"profile_id"`
	RequirementID   string      `json:"requirement_id"`
}

// Identity returns the query-identity triple used for uniqueness checks and
// for keying fused/reranked/refined lists.
func (q Query) Identity() QueryIdentity {
	return QueryIdentity{Type: q.Type, PaperTag: q.PaperTag, QueryText: q.QueryText}
}

// QueryIdentity is the (type, paper_tag, query_text) tuple that uniquely
// identifies a query across a plan. Two queries sharing a paper_tag but
// differing in query_text are distinct identities.
type QueryIdentity struct {
	Type      QueryType
	PaperTag  string
	QueryText string
}

// Requirement is a flattened user-intent string presented to the LLM
// refiner, synthesized from all enabled keyword paraphrases and intent
// queries by the planner.
type Requirement struct {
	ID             string `json:"id"`
	Query          string `json:"query"`
	Tag            string `json:"tag"`
	DescriptionEN  string `json:"description_en"`
}

// SourceIntentProfilesRequiredButMissing is the sentinel source value the
// planner sets when no profile is present. Downstream stages treat it as a
// successful no-op, not an error.
const SourceIntentProfilesRequiredButMissing = "intent_profiles_required_but_missing"

// QueryPlan is the planner's output: the ordered BM25 and embedding queries
// plus the flattened requirements handed to the LLM refiner.
type QueryPlan struct {
	Source        string        `json:"source,omitempty"`
	BM25Queries   []Query       `json:"bm25_queries"`
	EmbedQueries  []Query       `json:"embed_queries"`
	Requirements  []Requirement `json:"user_requirements"`
}

// IsEmpty reports whether the plan is the stage-gate no-op plan.
func (p QueryPlan) IsEmpty() bool {
	return p.Source == SourceIntentProfilesRequiredButMissing
}
