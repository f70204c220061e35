package model

// RankEntry is one {paper_id, score, rank} tuple inside a RankedList.
// Score is retriever-specific and not comparable across retrievers.
type RankEntry struct {
	PaperID string  `json:"paper_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// RankedList is one retriever's ordered output for a single query. Rank is
// 1-based, dense, and tie-broken by paper_id ascending.
type RankedList struct {
	QueryIdentity QueryIdentity `json:"-"`
	PaperTag      string        `json:"paper_tag"`
	QueryText     string        `json:"query_text"`
	Entries       []RankEntry   `json:"entries"`
}

// FusedEntry is one {paper_id, rrf_score, rank} tuple inside a FusedList.
type FusedEntry struct {
	PaperID  string  `json:"paper_id"`
	RRFScore float64 `json:"rrf_score"`
	Rank     int     `json:"rank"`
	InBoth   bool    `json:"in_both"`
}

// FusedList is RRFFuser's per-query output, produced from a sparse and a
// dense RankedList sharing the same query identity.
type FusedList struct {
	QueryIdentity QueryIdentity `json:"-"`
	PaperTag      string        `json:"paper_tag"`
	QueryText     string        `json:"query_text"`
	Entries       []FusedEntry  `json:"entries"`
}

// ReRankedEntry augments a fused entry with a cross-encoder score and a
// star rating local to the owning query.
type ReRankedEntry struct {
	PaperID    string  `json:"paper_id"`
	CrossScore float64 `json:"cross_score"`
	StarRating int     `json:"star_rating"`
	Rank       int     `json:"rank"`
}

// ReRanked is CrossEncoderReranker's per-query output.
type ReRanked struct {
	QueryIdentity QueryIdentity   `json:"-"`
	PaperTag      string          `json:"paper_tag"`
	QueryText     string          `json:"query_text"`
	Entries       []ReRankedEntry `json:"entries"`
}
