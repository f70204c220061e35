package embedding

import (
	"sort"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// Index is a per-run HNSW approximate nearest-neighbor index over paper
// embeddings, scored by cosine similarity on unit-normalized vectors
// (equivalent to dot product).
type Index struct {
	graph  *hnsw.Graph[uint64]
	idMap  map[string]uint64
	keyMap map[uint64]string
	next   uint64
}

// NewIndex builds an Index from paper ids and their (already L2-normalized)
// embedding vectors.
func NewIndex(ids []string, vectors [][]float32) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.Ml = 0.25

	idx := &Index{
		graph:  graph,
		idMap:  make(map[string]uint64, len(ids)),
		keyMap: make(map[uint64]string, len(ids)),
	}

	for i, id := range ids {
		key := idx.next
		idx.next++
		node := hnsw.MakeNode(key, vectors[i])
		idx.graph.Add(node)
		idx.idMap[id] = key
		idx.keyMap[key] = id
	}

	return idx
}

// Search returns the topK nearest papers to query (already L2-normalized),
// scored by dot product, ties broken by paper_id ascending, as a RankedList.
func (idx *Index) Search(q model.Query, query []float32, topK int) model.RankedList {
	if idx.graph.Len() == 0 {
		return model.RankedList{QueryIdentity: q.Identity(), PaperTag: q.PaperTag, QueryText: q.QueryText}
	}

	nodes := idx.graph.Search(query, topK)

	entries := make([]model.RankEntry, 0, len(nodes))
	for _, node := range nodes {
		id, ok := idx.keyMap[node.Key]
		if !ok {
			continue
		}
		score := dot(query, node.Value)
		entries = append(entries, model.RankEntry{PaperID: id, Score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PaperID < entries[j].PaperID
	})

	if topK > 0 && len(entries) > topK {
		entries = entries[:topK]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return model.RankedList{
		QueryIdentity: q.Identity(),
		PaperTag:      q.PaperTag,
		QueryText:     q.QueryText,
		Entries:       entries,
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
