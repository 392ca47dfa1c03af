// Package ioentrez talks to NCBI Entrez E-utilities using the history
// server: a search or a post creates a SearchContext on the server, and
// document summaries are then read from it page by page.
package ioentrez

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/gnfmt"
)

// SearchContext is a handle to a result set kept by the Entrez history
// server.
type SearchContext struct {
	QueryKey string `json:"queryKey"`
	WebEnv   string `json:"webEnv"`
	Count    int    `json:"count"`
}

// Client is an Entrez client.
type Client struct {
	fetcher  *iofetch.Fetcher
	url      string
	apiKey   string
	pageSize int
}

// New creates a Client that uses the given fetcher for all requests.
func New(f *iofetch.Fetcher, cfg config.EntrezConfig) *Client {
	return &Client{
		fetcher:  f,
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
	}
}

type esearchResponse struct {
	Result struct {
		Count    string `json:"count"`
		QueryKey string `json:"querykey"`
		WebEnv   string `json:"webenv"`
		Error    string `json:"ERROR"`
	} `json:"esearchresult"`
}

// Search runs ESearch for term in db and keeps the results on the
// history server.
func (c *Client) Search(ctx context.Context, db, term string) (SearchContext, error) {
	var res SearchContext
	q := url.Values{
		"db":         {db},
		"retmode":    {"json"},
		"usehistory": {"y"},
		"term":       {term},
	}
	c.addKey(q)

	resp, err := c.fetcher.Fetch(ctx, iofetch.Request{
		URL:   c.url + "esearch.fcgi",
		Query: q,
	})
	if err != nil {
		return res, SearchError(term, err)
	}

	var es esearchResponse
	enc := gnfmt.GNjson{}
	if err = enc.Decode(resp.Body, &es); err != nil {
		return res, SearchError(term, err)
	}
	r := es.Result
	if r.Error != "" {
		return res, SearchError(term, ResponseError("esearch", r.Error))
	}
	if r.QueryKey == "" || r.WebEnv == "" {
		return res, SearchError(term,
			ResponseError("esearch", "no query key or web environment"))
	}
	count, err := strconv.Atoi(r.Count)
	if err != nil {
		return res, SearchError(term, ResponseError("esearch", "bad count "+r.Count))
	}

	res = SearchContext{QueryKey: r.QueryKey, WebEnv: r.WebEnv, Count: count}
	return res, nil
}

type epostResult struct {
	QueryKey string `xml:"QueryKey"`
	WebEnv   string `xml:"WebEnv"`
	Error    string `xml:"ERROR"`
}

// Post uploads ids to db and returns a SearchContext for them. The count
// of the context is the number of posted IDs.
func (c *Client) Post(ctx context.Context, db string, ids []string) (SearchContext, error) {
	var res SearchContext
	form := url.Values{
		"db": {db},
		"id": {strings.Join(ids, ",")},
	}
	c.addKey(form)

	resp, err := c.fetcher.Fetch(ctx, iofetch.Request{
		Method: http.MethodPost,
		URL:    c.url + "epost.fcgi",
		Form:   form,
	})
	if err != nil {
		return res, PostError(db, len(ids), err)
	}

	var ep epostResult
	if err = xml.Unmarshal(resp.Body, &ep); err != nil {
		return res, PostError(db, len(ids), err)
	}
	if ep.Error != "" {
		return res, PostError(db, len(ids), ResponseError("epost", ep.Error))
	}
	if ep.QueryKey == "" || ep.WebEnv == "" {
		return res, PostError(db, len(ids),
			ResponseError("epost", "no query key or web environment"))
	}

	res = SearchContext{
		QueryKey: strings.TrimSpace(ep.QueryKey),
		WebEnv:   strings.TrimSpace(ep.WebEnv),
		Count:    len(ids),
	}
	return res, nil
}

// ExtractFunc converts one document summary to a record. Records for
// which it returns false are dropped.
type ExtractFunc[T any] func(raw json.RawMessage) (T, bool)

// Summaries reads all document summaries of a search context with
// ESummary. Pages that fail are skipped, see iofetch.Paginate.
func Summaries[T any](
	ctx context.Context,
	c *Client,
	sc SearchContext,
	db string,
	extract ExtractFunc[T],
	opts ...iofetch.PageOption,
) iter.Seq2[T, error] {
	page := func(ctx context.Context, offset, size int) ([]T, error) {
		body, err := c.summaryPage(ctx, sc, db, offset, size)
		if err != nil {
			return nil, err
		}
		return parseSummaries(body, extract)
	}
	return iofetch.Paginate(ctx, sc.Count, c.pageSize, page, opts...)
}

func (c *Client) summaryPage(
	ctx context.Context,
	sc SearchContext,
	db string,
	offset, size int,
) ([]byte, error) {
	q := url.Values{
		"query_key": {sc.QueryKey},
		"WebEnv":    {sc.WebEnv},
		"version":   {"2.0"},
		"retmode":   {"json"},
		"retstart":  {strconv.Itoa(offset)},
		"retmax":    {strconv.Itoa(size)},
		"db":        {db},
	}
	c.addKey(q)

	resp, err := c.fetcher.Fetch(ctx, iofetch.Request{
		URL:   c.url + "esummary.fcgi",
		Query: q,
		// chunked compressed responses get truncated
		Header: http.Header{"Accept-Encoding": {"identity"}},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func parseSummaries[T any](body []byte, extract ExtractFunc[T]) ([]T, error) {
	var page struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	enc := gnfmt.GNjson{}
	if err := enc.Decode(body, &page); err != nil {
		return nil, ResponseError("esummary", err.Error())
	}

	var uids []string
	if raw, ok := page.Result["uids"]; ok {
		_ = enc.Decode(raw, &uids)
	}
	if len(uids) == 0 {
		for k := range page.Result {
			if k != "uids" {
				uids = append(uids, k)
			}
		}
		slices.Sort(uids)
	}

	res := make([]T, 0, len(uids))
	for _, uid := range uids {
		raw, ok := page.Result[uid]
		if !ok {
			continue
		}
		if rec, ok := extract(raw); ok {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (c *Client) addKey(v url.Values) {
	if c.apiKey != "" {
		v.Set("api_key", c.apiKey)
	}
}
