package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

const (
	mapElementID   = "gnodMap"
	sponsorPrefix  = "https://www.gnoosic.com"
	maxPageBytes   = 4 << 20
	idleConnExpiry = 30 * time.Second
)

// MusicMapProvider fetches a node's page from music-map.com and returns the
// artist links of its map, in page order.
type MusicMapProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
	breaker   *errors.CircuitBreaker
	logger    *slog.Logger
}

var _ NeighborProvider = (*MusicMapProvider)(nil)

// NewMusicMapProvider creates a provider for cfg.BaseURL. Zero fields of cfg
// fall back to the defaults.
func NewMusicMapProvider(cfg Config, logger *slog.Logger) *MusicMapProvider {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     idleConnExpiry,
	}

	return &MusicMapProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		breaker: errors.NewCircuitBreaker("musicmap",
			errors.WithMaxFailures(cfg.MaxFailures),
			errors.WithResetTimeout(cfg.ResetTimeout),
			// A missing page is an answer, not an outage.
			errors.WithFailurePredicate(func(err error) bool {
				return err != nil &&
					!errors.HasCode(err, errors.ErrCodeNeighborsNotFound) &&
					!errors.HasCode(err, errors.ErrCodeSearchCancelled)
			}),
		),
		logger: logger,
	}
}

// Breaker exposes the circuit breaker state for status output.
func (p *MusicMapProvider) Breaker() *errors.CircuitBreaker {
	return p.breaker
}

// NormalizeID implements IDNormalizer with the artist slug scheme.
func (p *MusicMapProvider) NormalizeID(raw string) (string, error) {
	return ArtistID(raw)
}

// FetchNeighbors implements NeighborProvider.
func (p *MusicMapProvider) FetchNeighbors(ctx context.Context, id string) ([]string, error) {
	children, err := errors.CircuitExecute(p.breaker, func() ([]string, error) {
		return p.fetch(ctx, id)
	})
	switch {
	case err == nil:
		return children, nil
	case errors.HasCode(err, errors.ErrCodeNeighborsNotFound):
		p.logger.Debug("node has no page", slog.String("node", id))
		return nil, err
	case errors.HasCode(err, errors.ErrCodeCircuitOpen):
		return nil, errors.FetchError(id, err)
	default:
		return nil, err
	}
}

func (p *MusicMapProvider) fetch(ctx context.Context, id string) ([]string, error) {
	url := p.baseURL + "/" + strings.TrimPrefix(id, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.FetchError(id, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html")

	began := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Cancelled(ctx.Err())
		}
		return nil, errors.FetchError(id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound(id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.FetchError(id, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	children, err := ParseMap(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, errors.FetchError(id, err)
	}

	p.logger.Debug("fetched node page",
		slog.String("node", id),
		slog.Int("children", len(children)),
		slog.Duration("duration", time.Since(began)))
	return children, nil
}

// ParseMap extracts the neighbor ids from a music-map page: the hrefs of the
// anchors inside the element with id "gnodMap", in document order. Sponsor
// links and empty hrefs are skipped, a leading "/" is trimmed and duplicates
// are dropped. A page without a map yields no neighbors.
func ParseMap(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	container := findByID(doc, mapElementID)
	if container == nil {
		return []string{}, nil
	}

	children := []string{}
	seen := make(map[string]struct{})
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := strings.TrimSpace(attr(n, "href"))
			href = strings.TrimPrefix(href, "/")
			if href != "" && !strings.HasPrefix(href, sponsorPrefix) {
				if _, dup := seen[href]; !dup {
					seen[href] = struct{}{}
					children = append(children, href)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return children, nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
