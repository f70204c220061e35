// Package planner normalizes user-authored intent profiles into the
// BM25/embedding query plan and the flattened requirement list the LLM
// refiner scores candidates against.
package planner

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// Plan builds a QueryPlan from the configured intent profiles. When no
// profile is enabled, it returns the stage-gate no-op plan per spec.md
// §4.1: downstream stages must treat it as a successful no-op.
func Plan(profiles []model.IntentProfile, recallMode model.KeywordRecallMode) model.QueryPlan {
	enabled := make([]model.IntentProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return model.QueryPlan{Source: model.SourceIntentProfilesRequiredButMissing}
	}

	plan := model.QueryPlan{}
	seen := make(map[model.QueryIdentity]struct{})

	addQuery := func(dst *[]model.Query, q model.Query) {
		id := q.Identity()
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		*dst = append(*dst, q)
	}

	for _, profile := range enabled {
		profileID := profile.ResolvedID()
		paperTag := model.KeywordPaperTag(profile.Tag)

		for i, kw := range profile.Keywords {
			if !kw.IsEnabled() {
				continue
			}

			boolExpr := model.BooleanExpr{}
			bm25Text := cleanExpression(kw.Keyword)
			if recallMode == model.RecallModeBooleanMixed {
				bm25Text = kw.Keyword
				boolExpr = parseBooleanExpr(kw.Keyword)
			}

			terms := []model.QueryTerm{{Term: cleanExpression(kw.Keyword), Weight: 1.0}}
			for _, opt := range kw.Optional {
				terms = append(terms, model.QueryTerm{Term: opt, Weight: 0.5})
			}

			reqID := fmt.Sprintf("%s#kw%d", profileID, i)

			addQuery(&plan.BM25Queries, model.Query{
				Type:          model.QueryTypeKeyword,
				PaperTag:      paperTag,
				QueryText:     bm25Text,
				QueryTerms:    terms,
				BooleanExpr:   boolExpr,
				ProfileID:     profileID,
				RequirementID: reqID,
			})

			embedText := kw.Query
			if embedText == "" {
				embedText = cleanExpression(kw.Keyword)
			}
			addQuery(&plan.EmbedQueries, model.Query{
				Type:          model.QueryTypeKeyword,
				PaperTag:      paperTag,
				QueryText:     embedText,
				ProfileID:     profileID,
				RequirementID: reqID,
			})

			desc := embedText
			if desc == "" {
				desc = bm25Text
			}
			plan.Requirements = append(plan.Requirements, model.Requirement{
				ID:            reqID,
				Query:         embedText,
				Tag:           profile.Tag,
				DescriptionEN: desc,
			})
		}

		queryTag := model.QueryPaperTag(profile.Tag)
		for i, iq := range profile.IntentQueries {
			if !iq.IsEnabled() {
				continue
			}

			reqID := fmt.Sprintf("%s#iq%d", profileID, i)

			addQuery(&plan.BM25Queries, model.Query{
				Type:          model.QueryTypeIntentQuery,
				PaperTag:      queryTag,
				QueryText:     iq.Query,
				ProfileID:     profileID,
				RequirementID: reqID,
			})
			addQuery(&plan.EmbedQueries, model.Query{
				Type:          model.QueryTypeIntentQuery,
				PaperTag:      queryTag,
				QueryText:     iq.Query,
				ProfileID:     profileID,
				RequirementID: reqID,
			})

			plan.Requirements = append(plan.Requirements, model.Requirement{
				ID:            reqID,
				Query:         iq.Query,
				Tag:           profile.Tag,
				DescriptionEN: iq.Query,
			})
		}
	}

	return plan
}

var booleanTokens = map[string]bool{"AND": true, "OR": true, "NOT": true}

// cleanExpression strips boolean operator tokens and surrounding quotes,
// returning the plain-text term sequence used for BM25 tokenization when
// the configuration is not running in boolean_mixed mode.
func cleanExpression(expr string) string {
	fields := strings.Fields(expr)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if booleanTokens[strings.ToUpper(f)] {
			continue
		}
		out = append(out, stripQuotes(f))
	}
	return strings.Join(out, " ")
}

// parseBooleanExpr interprets AND/OR/NOT tokens as hard-filter structure:
// terms joined by AND (the default) become must_have, terms following an
// OR joiner become optional, terms following NOT become exclude.
func parseBooleanExpr(expr string) model.BooleanExpr {
	tokens := strings.Fields(expr)
	var must, optional, exclude []string
	joiner := "AND"

	for i := 0; i < len(tokens); i++ {
		upper := strings.ToUpper(tokens[i])
		switch upper {
		case "AND", "OR":
			joiner = upper
		case "NOT":
			if i+1 < len(tokens) {
				i++
				exclude = append(exclude, stripQuotes(tokens[i]))
			}
		default:
			term := stripQuotes(tokens[i])
			if joiner == "OR" {
				optional = append(optional, term)
			} else {
				must = append(must, term)
			}
		}
	}

	return model.BooleanExpr{MustHave: must, Optional: optional, Exclude: exclude}
}

func stripQuotes(s string) string {
	return strings.Trim(s, `"'`)
}
