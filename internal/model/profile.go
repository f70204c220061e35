// Package model defines the data types shared across every pipeline stage:
// intent profiles, query plans, papers, ranked lists, and the final
// selected-paper records. Types here are pure data — no stage performs
// in-place mutation of another stage's output.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// SchemaStage gates which subscription schema a configuration document uses.
type SchemaStage string

const (
	SchemaStageA SchemaStage = "A"
	SchemaStageB SchemaStage = "B"
	SchemaStageC SchemaStage = "C"
)

// KeywordRecallMode controls whether boolean operators in a keyword
// expression are preserved for hard filtering or stripped for plain BM25.
type KeywordRecallMode string

const (
	RecallModeOR           KeywordRecallMode = "or"
	RecallModeBooleanMixed KeywordRecallMode = "boolean_mixed"
)

// KeywordRule is one lexical rule inside an IntentProfile. It unmarshals
// from either a bare YAML string (the keyword expression itself) or a
// mapping with optional paraphrase/logic/enabled fields.
type KeywordRule struct {
	Keyword  string   `yaml:"keyword" json:"keyword"`
	Query    string   `yaml:"query" json:"query,omitempty"`
	LogicCN  string   `yaml:"logic_cn" json:"logic_cn,omitempty"`
	Enabled  *bool    `yaml:"enabled" json:"enabled,omitempty"`
	Optional []string `yaml:"optional" json:"optional,omitempty"`
}

// IsEnabled reports whether the rule is active; absent defaults to true.
func (k KeywordRule) IsEnabled() bool {
	return k.Enabled == nil || *k.Enabled
}

// UnmarshalYAML accepts either a plain string or a mapping.
func (k *KeywordRule) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		k.Keyword = s
		return nil
	}

	type plain KeywordRule
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*k = KeywordRule(p)
	return nil
}

// IntentQuery is one natural-language query inside an IntentProfile.
type IntentQuery struct {
	Query   string `yaml:"query" json:"query"`
	Enabled *bool  `yaml:"enabled" json:"enabled,omitempty"`
}

// IsEnabled reports whether the query is active; absent defaults to true.
func (q IntentQuery) IsEnabled() bool {
	return q.Enabled == nil || *q.Enabled
}

// UnmarshalYAML accepts either a plain string or a mapping.
func (q *IntentQuery) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		q.Query = s
		return nil
	}

	type plain IntentQuery
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*q = IntentQuery(p)
	return nil
}

// IntentProfile is a user-authored bundle of lexical rules and
// natural-language intent queries representing one research interest.
type IntentProfile struct {
	ID            string        `yaml:"id" json:"id"`
	Tag           string        `yaml:"tag" json:"tag"`
	Description   string        `yaml:"description" json:"description,omitempty"`
	Enabled       *bool         `yaml:"enabled" json:"enabled,omitempty"`
	Keywords      []KeywordRule `yaml:"keywords" json:"keywords,omitempty"`
	IntentQueries []IntentQuery `yaml:"intent_queries" json:"intent_queries,omitempty"`
}

// IsEnabled reports whether the profile is active; absent defaults to true.
func (p IntentProfile) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify produces a stable profile id from a tag when one isn't given.
func Slugify(tag string) string {
	s := strings.ToLower(strings.TrimSpace(tag))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "profile"
	}
	return s
}

// ResolvedID returns the profile's id, slugifying the tag if none is set.
func (p IntentProfile) ResolvedID() string {
	if p.ID != "" {
		return p.ID
	}
	return Slugify(p.Tag)
}

// KeywordPaperTag returns the paper_tag attribution label for keyword-derived queries.
func KeywordPaperTag(tag string) string {
	return fmt.Sprintf("keyword:%s", tag)
}

// QueryPaperTag returns the paper_tag attribution label for intent-query-derived queries.
func QueryPaperTag(tag string) string {
	return fmt.Sprintf("query:%s", tag)
}
