package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDateToken_SingleDay(t *testing.T) {
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260305", RunDateToken(end, 1))
	assert.Equal(t, "20260305", RunDateToken(end, 7))
}

func TestRunDateToken_LongWindow(t *testing.T) {
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260225-20260305", RunDateToken(end, 8))
	assert.Equal(t, "20260203-20260305", RunDateToken(end, 30))
}

func TestRoot_JoinsArchiveDir(t *testing.T) {
	root := Root("/work", "20260305")
	assert.Equal(t, filepath.Join("/work", "archive", "20260305"), root)
}

func TestRerankedPath_MatchesNamingConvention(t *testing.T) {
	root := Root("/work", "20260305")
	path := RerankedPath(root, "20260305")
	assert.Equal(t, filepath.Join(root, "rank", "arxiv_papers_20260305.json"), path)
}

func TestRefinedPath_IsLLMSiblingOfReranked(t *testing.T) {
	root := Root("/work", "20260305")
	path := RefinedPath(root, "20260305")
	assert.Equal(t, filepath.Join(root, "rank", "arxiv_papers_20260305.llm.json"), path)
}

func TestSeenSetPath_DoesNotVaryWithRunDateToken(t *testing.T) {
	assert.Equal(t, filepath.Join("/work", "archive", "seen.db"), SeenSetPath("/work"))
}

func TestPlanPath_IsRunRootChild(t *testing.T) {
	root := Root("/work", "20260305")
	assert.Equal(t, filepath.Join(root, "plan.json"), PlanPath(root))
}

func TestFusedPath_IsRankDirChild(t *testing.T) {
	root := Root("/work", "20260305")
	assert.Equal(t, filepath.Join(root, "rank", "fused.json"), FusedPath(root))
}

type sample struct {
	Name string `json:"name"`
	CN   string `json:"cn"`
}

func TestWriteJSON_ReadJSON_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "out.json")

	in := sample{Name: "alpha", CN: "不相关"}
	require.NoError(t, WriteJSON(path, in))

	var out sample
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)
}

func TestWriteJSON_PreservesNonASCII(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out.json")

	require.NoError(t, WriteJSON(path, sample{Name: "x", CN: "不相关"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "不相关", "non-ASCII should be preserved verbatim, not \\u-escaped")
	assert.NotContains(t, string(data), `\u`)
}

func TestWriteJSON_AtomicReplace(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out.json")

	require.NoError(t, WriteJSON(path, sample{Name: "first"}))
	require.NoError(t, WriteJSON(path, sample{Name: "second"}))

	var out sample
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, "second", out.Name)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not survive a successful write")
}

func TestWriteRaw_CreatesParentDirsAndWritesVerbatim(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "rank", "debug", "filter_raw_batch_000.txt")

	require.NoError(t, WriteRaw(path, `{"results": [`))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"results": [`, string(data))
}
