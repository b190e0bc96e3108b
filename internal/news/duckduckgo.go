package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const (
	defaultBaseURL = "https://duckduckgo.com"
	defaultHTMLURL = "https://html.duckduckgo.com/html/"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ErrNoToken = errors.New("search token not found")

	vqdPattern = regexp.MustCompile(`vqd=["']?([\d-]+)["']?`)
)

// Searcher runs the two search flavours the news panel uses.
type Searcher interface {
	News(ctx context.Context, query string, limit int) ([]Article, error)
	Text(ctx context.Context, query string, limit int) ([]Article, error)
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DuckDuckGo queries the public news JSON endpoint and the HTML results
// page.
type DuckDuckGo struct {
	baseURL string
	htmlURL string
	client  HTTPClient
}

type Option func(*DuckDuckGo)

func WithBaseURL(u string) Option {
	return func(d *DuckDuckGo) {
		if u != "" {
			d.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTMLURL(u string) Option {
	return func(d *DuckDuckGo) {
		if u != "" {
			d.htmlURL = u
		}
	}
}

func WithHTTPClient(hc HTTPClient) Option {
	return func(d *DuckDuckGo) {
		if hc != nil {
			d.client = hc
		}
	}
}

func NewDuckDuckGo(timeout time.Duration, opts ...Option) *DuckDuckGo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &DuckDuckGo{
		baseURL: defaultBaseURL,
		htmlURL: defaultHTMLURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type newsResponse struct {
	Results []struct {
		Date    int64  `json:"date"`
		Excerpt string `json:"excerpt"`
		Image   string `json:"image"`
		Source  string `json:"source"`
		Title   string `json:"title"`
		URL     string `json:"url"`
	} `json:"results"`
}

func (d *DuckDuckGo) News(ctx context.Context, query string, limit int) ([]Article, error) {
	vqd, err := d.token(ctx, query)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("l", "wt-wt")
	params.Set("o", "json")
	params.Set("noamp", "1")
	params.Set("q", query)
	params.Set("vqd", vqd)
	params.Set("p", "-1")

	body, err := d.get(ctx, d.baseURL+"/news.js?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var resp newsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode news: %w", err)
	}

	out := make([]Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(out) >= limit {
			break
		}
		a := Article{
			Title:  r.Title,
			URL:    r.URL,
			Body:   r.Excerpt,
			Source: r.Source,
			Image:  r.Image,
		}
		if r.Date > 0 {
			a.Date = time.Unix(r.Date, 0).UTC().Format(time.RFC3339)
		}
		out = append(out, a)
	}
	return out, nil
}

func (d *DuckDuckGo) Text(ctx context.Context, query string, limit int) ([]Article, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("b", "")
	form.Set("kl", "wt-wt")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.htmlURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://html.duckduckgo.com/")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("text search: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return parseTextResults(doc, limit), nil
}

func parseTextResults(doc *goquery.Document, limit int) []Article {
	out := make([]Article, 0, limit)
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return true
		}
		out = append(out, Article{
			Title: strings.TrimSpace(link.Text()),
			URL:   unwrapRedirect(href),
			Body:  strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return true
	})
	return out
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<target> links into the
// target URL.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func (d *DuckDuckGo) token(ctx context.Context, query string) (string, error) {
	body, err := d.get(ctx, d.baseURL+"/?"+url.Values{"q": {query}}.Encode())
	if err != nil {
		return "", err
	}
	m := vqdPattern.FindSubmatch(body)
	if m == nil {
		return "", ErrNoToken
	}
	return string(m[1]), nil
}

func (d *DuckDuckGo) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://duckduckgo.com/")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		hlog.Debugf("duckduckgo %s returned %d", req.URL.Path, resp.StatusCode)
		return nil, fmt.Errorf("request %s: HTTP %d", req.URL.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
