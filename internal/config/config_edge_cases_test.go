package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// Edge case tests covering scenarios that could cause silent failures or
// unexpected behavior in config loading and merging.

// =============================================================================
// Merge Edge Cases
// =============================================================================

// TestLoad_ZeroValuesNotMerged tests that explicit zero values in a project
// config file don't override defaults (a merge, not a replace).
func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
retrieval:
  bm25_top_k: 0
  rrf_constant: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Retrieval.BM25TopK, "zero should not override default bm25_top_k")
	assert.Equal(t, 60, cfg.Retrieval.RRFConstant, "zero should not override default rrf_constant")
}

// TestLoad_PreferSupabaseReadFalse_IsMergedExplicitly tests that a boolean
// field explicitly set to false in the file is still applied, since bools
// don't have a meaningful "unset" zero value to guard against.
func TestLoad_PreferSupabaseReadFalse_IsMergedExplicitly(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
arxiv_paper_setting:
  days_window: 5
  prefer_supabase_read: false
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ArxivPaperSetting.DaysWindow)
	assert.False(t, cfg.ArxivPaperSetting.PreferSupabaseRead)
}

// TestLoad_NegativeDaysWindow_Validated tests that an out-of-range
// days_window is rejected by validation.
func TestLoad_NegativeDaysWindow_Validated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "arxiv_paper_setting:\n  days_window: -3\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "days_window")
}

// TestLoad_InvalidSchemaStage_ReturnsError tests that an unrecognized
// schema_migration.stage value fails validation.
func TestLoad_InvalidSchemaStage_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "subscriptions:\n  schema_migration:\n    stage: Z\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "schema_migration.stage")
}

// TestLoad_InvalidKeywordRecallMode_ReturnsError tests that an unrecognized
// keyword_recall_mode value fails validation.
func TestLoad_InvalidKeywordRecallMode_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "subscriptions:\n  keyword_recall_mode: fuzzy\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "keyword_recall_mode")
}

// =============================================================================
// Config File Permission Edge Cases
// =============================================================================

// TestLoad_UnreadableConfigFile_ReturnsError tests that unreadable config
// files return an error rather than silently falling back to defaults.
func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("test requires non-root user")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dpr.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log_level: debug"), 0o000))
	defer func() { _ = os.Chmod(configPath, 0o644) }()

	cfg, err := Load(tmpDir)

	require.Error(t, err, "Load should fail for an unreadable config file")
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read")
}

// =============================================================================
// Intent Profile Polymorphic YAML Edge Cases
// =============================================================================

// TestLoad_KeywordAsPlainString_ParsesAsEnabled tests that a keyword entry
// given as a bare YAML string is accepted and defaults to enabled.
func TestLoad_KeywordAsPlainString_ParsesAsEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
subscriptions:
  intent_profiles:
    - tag: SR
      keywords:
        - "genetic programming"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.Len(t, cfg.Subscriptions.IntentProfiles, 1)
	require.Len(t, cfg.Subscriptions.IntentProfiles[0].Keywords, 1)
	kw := cfg.Subscriptions.IntentProfiles[0].Keywords[0]
	assert.Equal(t, "genetic programming", kw.Keyword)
	assert.True(t, kw.IsEnabled())
}

// TestLoad_KeywordAsMapping_WithEnabledFalse_IsDisabled tests that a
// keyword entry given as a mapping with enabled: false parses as a
// disabled keyword.
func TestLoad_KeywordAsMapping_WithEnabledFalse_IsDisabled(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
subscriptions:
  intent_profiles:
    - tag: SR
      enabled: true
      keywords:
        - keyword: "deprecated topic"
          enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.Len(t, cfg.Subscriptions.IntentProfiles[0].Keywords, 1)
	kw := cfg.Subscriptions.IntentProfiles[0].Keywords[0]
	assert.False(t, kw.IsEnabled())
}

// TestLoad_IntentProfileDisabled_ExcludedFromHasIntentProfiles tests that a
// profile explicitly disabled does not count toward HasIntentProfiles, even
// when other profiles are present.
func TestLoad_IntentProfileDisabled_ExcludedFromHasIntentProfiles(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
subscriptions:
  intent_profiles:
    - tag: Retired
      enabled: false
      keywords:
        - "old topic"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.False(t, cfg.HasIntentProfiles())
}

// TestLoad_ResolvedIDFallsBackToSlugifiedTag tests that a profile without an
// explicit id derives one from its tag.
func TestLoad_ResolvedIDFallsBackToSlugifiedTag(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
subscriptions:
  intent_profiles:
    - tag: "Symbolic Regression!"
      keywords:
        - "equation discovery"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dpr.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.Len(t, cfg.Subscriptions.IntentProfiles, 1)
	assert.Equal(t, "symbolic-regression", cfg.Subscriptions.IntentProfiles[0].ResolvedID())
}

// =============================================================================
// JSON Round-Trip Edge Cases
// =============================================================================

// TestConfig_JSON_RoundTrip tests that config marshals to JSON and back
// without data loss for JSON-accessible fields.
func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Retrieval.RRFConstant = 100
	cfg.Retrieval.SelectN = 20
	cfg.Subscriptions.KeywordRecallMode = model.RecallModeBooleanMixed

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var parsed Config
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, 100, parsed.Retrieval.RRFConstant)
	assert.Equal(t, 20, parsed.Retrieval.SelectN)
	assert.Equal(t, model.RecallModeBooleanMixed, parsed.Subscriptions.KeywordRecallMode)
}

// TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError tests that invalid JSON
// returns an error rather than silently zeroing fields.
func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	invalidJSON := []byte("{invalid json")

	var cfg Config
	err := json.Unmarshal(invalidJSON, &cfg)

	require.Error(t, err)
}
