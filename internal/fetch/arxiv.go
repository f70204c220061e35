package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dprerrors "github.com/Aman-CERP/dpr-pipeline/internal/errors"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// DefaultArxivBaseURL is the arXiv Search API endpoint.
const DefaultArxivBaseURL = "http://export.arxiv.org/api/query"

// arxivEntry mirrors the Atom <entry> element the arXiv API returns. The
// API is a fixed external XML wire format with no JSON alternative, so
// encoding/xml is the natural fit here rather than a third-party feed
// parser.
type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	PrimaryCategory struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

// ArxivClient queries the arXiv Search API and normalizes results into
// model.Paper records.
type ArxivClient struct {
	baseURL string
	client  *http.Client
}

// NewArxivClient constructs a client against baseURL (DefaultArxivBaseURL
// unless overridden for tests).
func NewArxivClient(baseURL string) *ArxivClient {
	if baseURL == "" {
		baseURL = DefaultArxivBaseURL
	}
	return &ArxivClient{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

// Search runs a single arXiv query, sorted by submitted date descending,
// capped at maxResults.
func (c *ArxivClient) Search(ctx context.Context, queryText string, maxResults int) ([]model.Paper, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+queryText)
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build arxiv request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, dprerrors.ProviderError(dprerrors.ErrCodeArxivProvider, "arxiv search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		perr := dprerrors.ProviderError(dprerrors.ErrCodeArxivProvider,
			fmt.Sprintf("arxiv search returned %d: %s", resp.StatusCode, string(data)), nil)
		perr.Retryable = resp.StatusCode >= 500
		return nil, perr
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	papers := make([]model.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		p, err := toPaper(e)
		if err != nil {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func toPaper(e arxivEntry) (model.Paper, error) {
	published, err := time.Parse(time.RFC3339, e.Published)
	if err != nil {
		return model.Paper{}, fmt.Errorf("parse published date %q: %w", e.Published, err)
	}

	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, a.Name)
	}
	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		categories = append(categories, c.Term)
	}

	var link string
	for _, l := range e.Links {
		if l.Rel == "alternate" || link == "" {
			link = l.Href
		}
	}

	return model.Paper{
		ID:              normalizeArxivID(e.ID),
		Source:          "arxiv",
		Title:           collapseWhitespace(e.Title),
		Abstract:        collapseWhitespace(e.Summary),
		Authors:         authors,
		PrimaryCategory: e.PrimaryCategory.Term,
		Categories:      categories,
		Published:       published,
		Link:            link,
	}, nil
}

// normalizeArxivID strips the abs/ URL prefix and the version suffix
// (e.g. "http://arxiv.org/abs/2401.00001v2" -> "2401.00001"), so two
// versions of the same paper collapse to one SeenSet key.
func normalizeArxivID(raw string) string {
	id := raw
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	if idx := strings.LastIndex(id, "v"); idx > 0 {
		if isAllDigits(id[idx+1:]) {
			id = id[:idx]
		}
	}
	return id
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
