// Package httplookup queries a running Yomitan instance over its local
// HTTP API and presents the results as lexicon entries. The client is a
// best-effort supplement to the on-disk dictionary: every transport or
// decoding failure is logged and collapses to an empty result rather
// than an error.
package httplookup

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/meikido/kotoba/core/lexicon"
	"github.com/meikido/kotoba/core/render"
	"github.com/meikido/kotoba/internal/cache"
	"github.com/meikido/kotoba/internal/logging"
)

// resultTTL is how long a term's API response stays cached.
const resultTTL = 30 * time.Second

// Client talks to the Yomitan HTTP API. Responses are cached per term
// for a short window so repeated lookups of the same text do not hammer
// the API.
type Client struct {
	baseURL string
	httpc   *http.Client
	results *cache.TTLCache[string, []lexicon.Entry]
}

// New creates a client for the API at baseURL. A non-positive timeout
// defaults to two seconds per request.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		results: cache.New[string, []lexicon.Entry](resultTTL),
	}
}

var _ lexicon.Lookuper = (*Client)(nil)

// CheckConnection reports whether the API answers its version
// endpoint.
func (c *Client) CheckConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/yomitanVersion", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// LookupWritten queries the API for term. The API does not distinguish
// written forms from readings; both lookups hit the same endpoint.
func (c *Client) LookupWritten(form string) []lexicon.Entry {
	return c.lookup(form)
}

// LookupReading queries the API for reading.
func (c *Client) LookupReading(reading string) []lexicon.Entry {
	return c.lookup(reading)
}

// PriorityOf always reports not found. The API ranks results itself
// and exposes no keyed priority map.
func (c *Client) PriorityOf(form, reading string) (float64, bool) {
	return 0, false
}

// FrequencyOf always reports not found. Frequencies arrive inline per
// entry, not as a keyed map.
func (c *Client) FrequencyOf(form, reading string) (lexicon.FrequencyValue, bool) {
	return lexicon.FrequencyValue{}, false
}

func (c *Client) lookup(term string) []lexicon.Entry {
	if cached, ok := c.results.Get(term); ok {
		return cached
	}
	entries := c.fetch(term)
	c.results.Set(term, entries)
	return entries
}

func (c *Client) fetch(term string) []lexicon.Entry {
	body, err := json.Marshal(map[string]string{"term": term})
	if err != nil {
		return nil
	}

	resp, err := c.httpc.Post(c.baseURL+"/termEntries", "application/json", bytes.NewReader(body))
	if err != nil {
		logging.Warn("api_lookup_failed", "term", term, "error", err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Warn("api_lookup_failed", "term", term, "status", resp.StatusCode)
		return nil
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logging.Warn("api_lookup_failed", "term", term, "error", err.Error())
		return nil
	}

	var entries []lexicon.Entry
	for idx, raw := range decoded.DictionaryEntries {
		if entry, ok := convertAPIEntry(raw, idx); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

type apiResponse struct {
	DictionaryEntries []apiEntry `json:"dictionaryEntries"`
}

type apiEntry struct {
	Headwords   []apiHeadword   `json:"headwords"`
	Definitions []apiDefinition `json:"definitions"`
}

type apiHeadword struct {
	Term        string   `json:"term"`
	Reading     string   `json:"reading"`
	WordClasses []string `json:"wordClasses"`
}

type apiDefinition struct {
	Dictionary      string            `json:"dictionary"`
	DictionaryAlias string            `json:"dictionaryAlias"`
	Entries         []json.RawMessage `json:"entries"`
}

// convertAPIEntry turns one API dictionary entry into a lexicon entry.
// The first headword supplies the written form and reading; one sense
// is built per definition. Entries with no headword or no renderable
// definition are dropped.
func convertAPIEntry(item apiEntry, index int) (lexicon.Entry, bool) {
	if len(item.Headwords) == 0 {
		return lexicon.Entry{}, false
	}
	head := item.Headwords[0]

	var senses []lexicon.Sense
	source := ""
	for _, def := range item.Definitions {
		glosses := definitionGlosses(def)
		if len(glosses) == 0 {
			continue
		}
		senses = append(senses, lexicon.Sense{
			Glosses:      glosses,
			PartOfSpeech: head.WordClasses,
		})
		if source == "" {
			source = definitionSource(def)
		}
	}
	if len(senses) == 0 {
		return lexicon.Entry{}, false
	}

	return lexicon.Entry{
		ID:           int64(index),
		WrittenForms: []string{head.Term},
		Readings:     []string{head.Reading},
		Senses:       senses,
		Source:       source,
	}, true
}

// definitionGlosses renders a definition's entries to HTML strings.
// Structured content goes through the shared renderer; plain strings
// pass through; anything else keeps its raw JSON text so no gloss is
// ever dropped.
func definitionGlosses(def apiDefinition) []string {
	var glosses []string
	for _, raw := range def.Entries {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			glosses = append(glosses, s)
			continue
		}

		var structured struct {
			Type    string          `json:"type"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(raw, &structured); err == nil && structured.Type == "structured-content" {
			var content any
			if err := json.Unmarshal(structured.Content, &content); err == nil {
				if html := render.Node(content, nil); html != "" {
					glosses = append(glosses, html)
					continue
				}
			}
		}

		glosses = append(glosses, string(raw))
	}
	return glosses
}

func definitionSource(def apiDefinition) string {
	if def.DictionaryAlias != "" {
		return def.DictionaryAlias
	}
	if def.Dictionary != "" {
		return def.Dictionary
	}
	return "yomitan-api"
}
