// Package archive computes the run-date token and the dated directory
// layout every pipeline stage reads and writes under, and provides atomic
// JSON read/write helpers shared by every stage.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunDateEnvVar is the environment variable the driver uses to propagate
// the run-date token to every stage subprocess.
const RunDateEnvVar = "DPR_RUN_DATE"

// longWindowTokenDays is the Open Question (a) threshold at or above which the
// run-date token switches from single-day YYYYMMDD to a YYYYMMDD-YYYYMMDD
// range token. Kept distinct from the selector's skims-mode threshold
// (11 days) per spec.md §9.
const longWindowTokenDays = 8

const dateLayout = "20060102"

// RunDateToken computes the run-date token for a fetch window of n days
// ending at end (exclusive), in UTC. Windows of 8 days or more use the
// long-window range token; shorter windows use the single-day token for
// the window's end date.
func RunDateToken(end time.Time, days int) string {
	end = end.UTC()
	if days >= longWindowTokenDays {
		start := end.AddDate(0, 0, -days)
		return fmt.Sprintf("%s-%s", start.Format(dateLayout), end.Format(dateLayout))
	}
	return end.Format(dateLayout)
}

// Root returns the archive root for a given run-date token, rooted at dir
// (typically the working directory).
func Root(dir, runDateToken string) string {
	return filepath.Join(dir, "archive", runDateToken)
}

// SeenSetPath returns the path to the cross-run SeenSet, rooted at dir.
// Unlike per-run archive artifacts this path does not vary with the
// run-date token: it is the one piece of state every run shares.
func SeenSetPath(dir string) string {
	return filepath.Join(dir, "archive", "seen.db")
}

// RankDir returns the rerank/refine working directory for a run.
func RankDir(root string) string {
	return filepath.Join(root, "rank")
}

// DebugDir returns the directory the LLM refiner dumps undecodable batches
// to, per spec.md §4.7 step 4.
func DebugDir(root string) string {
	return filepath.Join(RankDir(root), "debug")
}

// SelectedDir returns the directory the selector writes its final output to.
func SelectedDir(root string) string {
	return filepath.Join(root, "selected")
}

// PapersPath returns the fetcher's canonical output path for a run.
func PapersPath(root string) string {
	return filepath.Join(root, "papers.json")
}

// PlanPath returns the planner's output path for a run.
func PlanPath(root string) string {
	return filepath.Join(root, "plan.json")
}

// FusedPath returns the RRF fuser's output path for a run, the handoff
// between retrieval and reranking.
func FusedPath(root string) string {
	return filepath.Join(RankDir(root), "fused.json")
}

// RerankedPath returns the reranker's output path, named per spec.md §6
// (rank/arxiv_papers_<date>.json) using the run's date token.
func RerankedPath(root, runDateToken string) string {
	return filepath.Join(RankDir(root), fmt.Sprintf("arxiv_papers_%s.json", runDateToken))
}

// RefinedPath returns the LLM refiner's output path (the .llm.json sibling
// of the reranker output).
func RefinedPath(root, runDateToken string) string {
	return filepath.Join(RankDir(root), fmt.Sprintf("arxiv_papers_%s.llm.json", runDateToken))
}

// SelectedPath returns the selector's final output path for a run.
func SelectedPath(root, runDateToken string) string {
	return filepath.Join(SelectedDir(root), fmt.Sprintf("%s.json", runDateToken))
}

// WriteJSON writes v as UTF-8 JSON, indented 2 spaces, with HTML escaping
// disabled (the Go analogue of ensure_ascii=false: character data, not just
// ASCII, is preserved verbatim for the bilingual evidence fields). The
// write is atomic: a temp file is written first and renamed into place.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir for %s: %w", path, err)
	}

	buf, err := marshalIndent(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf, 0o644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file into %s: %w", path, err)
	}

	return nil
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRaw dumps raw text (e.g. an undecodable LLM response) to path,
// creating parent directories as needed. Unlike WriteJSON this is a plain,
// non-atomic write: debug dumps are diagnostic artifacts, not pipeline state.
func WriteRaw(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create debug dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write debug dump %s: %w", path, err)
	}
	return nil
}

// ReadJSON reads and decodes a JSON file written by WriteJSON.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
