// Package catalog is a rate-limited client for the Gwent card catalog REST API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gwentdecks/decks-server/internal/domain"
	"github.com/gwentdecks/decks-server/internal/normalize"
	"github.com/gwentdecks/decks-server/internal/ratelimit"
	"github.com/gwentdecks/decks-server/internal/validation"
)

const (
	// DefaultBaseURL is the public catalog API.
	DefaultBaseURL = "https://api.gwentapi.com/v0/"

	// Rate limit: 5 requests per second per endpoint, burst of 10
	defaultRPS   = 5.0
	defaultBurst = 10

	defaultTimeout = 10 * time.Second

	defaultLimit = 200
	maxLimit     = 500

	// Error bodies are kept for callers but not without bound.
	maxErrorBody = 4 << 10
)

// Config configures a Client. Zero fields take defaults.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client is a rate-limited catalog API client.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a catalog client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("catalog base url %q must be absolute", cfg.BaseURL)
	}
	// Relative references resolve under the last segment only with a trailing slash.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &Client{
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		logger:  logger,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Shutdown implements do.Shutdowner.
func (c *Client) Shutdown() error {
	c.Close()
	return nil
}

// GetCard fetches the full details of one card.
func (c *Client) GetCard(ctx context.Context, id string) (*domain.CardDetails, error) {
	id = strings.TrimSpace(id)
	if !validation.IsPathKey(id) {
		return nil, wrapError("getCard", id, ErrBadRequest)
	}

	body, err := c.doRequest(ctx, "cards", "cards/"+id, nil)
	if err != nil {
		return nil, wrapError("getCard", id, err)
	}

	var raw rawCard
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, wrapError("getCard", id, fmt.Errorf("parse response: %w", err))
	}

	card := rawCardToDetails(&raw)
	if card.IngameID == "" {
		card.IngameID = id
	}
	return card, nil
}

// ListCards lists every card.
func (c *Client) ListCards(ctx context.Context, page Page) ([]CardStub, error) {
	return c.list(ctx, "listCards", "", "cards", page)
}

// ListLeaders lists leader cards.
func (c *Client) ListLeaders(ctx context.Context, page Page) ([]CardStub, error) {
	return c.list(ctx, "listLeaders", "", "cards/leaders", page)
}

// ListByFaction lists the cards of one faction. Any spelling the normalizer
// accepts works; unknown names are passed through as given.
func (c *Client) ListByFaction(ctx context.Context, faction string, page Page) ([]CardStub, error) {
	slug := factionSlug(faction)
	if slug == "" {
		return nil, wrapError("listByFaction", faction, ErrBadRequest)
	}
	return c.list(ctx, "listByFaction", faction, "cards/factions/"+slug, page)
}

// ListByRarity lists the cards of one rarity (common, rare, epic, legendary).
func (c *Client) ListByRarity(ctx context.Context, rarity string, page Page) ([]CardStub, error) {
	slug := strings.ToLower(strings.TrimSpace(rarity))
	if slug == "" {
		return nil, wrapError("listByRarity", rarity, ErrBadRequest)
	}
	return c.list(ctx, "listByRarity", rarity, "cards/rarities/"+slug, page)
}

func (c *Client) list(ctx context.Context, op, arg, path string, page Page) ([]CardStub, error) {
	page = page.normalized()
	query := url.Values{}
	query.Set("limit", strconv.Itoa(page.Limit))
	query.Set("offset", strconv.Itoa(page.Offset))

	// The first path segment after cards/ names the endpoint for rate limiting.
	endpoint := path
	if parts := strings.SplitN(path, "/", 3); len(parts) > 1 {
		endpoint = parts[0] + "/" + parts[1]
	}

	body, err := c.doRequest(ctx, endpoint, path, query)
	if err != nil {
		return nil, wrapError(op, arg, err)
	}

	var resp rawList
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError(op, arg, fmt.Errorf("parse response: %w", err))
	}
	if resp.Results == nil {
		return []CardStub{}, nil
	}
	return resp.Results, nil
}

// doRequest executes a GET against the catalog with rate limiting.
func (c *Client) doRequest(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "GwentDecks/1.0")

	c.logger.Debug("catalog request",
		"endpoint", endpoint,
		"path", path,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// IDFromAPIURL returns the card id encoded as the last path segment of a
// catalog resource URL. Trailing slashes and query strings are ignored.
func IDFromAPIURL(apiURL string) string {
	s := apiURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if unescaped, err := url.PathUnescape(s); err == nil {
		return unescaped
	}
	return s
}

func factionSlug(faction string) string {
	name := normalize.Faction(faction)
	if name == "" {
		name = strings.TrimSpace(faction)
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

func rawCardToDetails(raw *rawCard) *domain.CardDetails {
	id := raw.IngameID
	if id == "" {
		id = raw.UUID
	}
	if id == "" && raw.Href != "" {
		id = IDFromAPIURL(raw.Href)
	}

	faction := normalize.Faction(raw.Faction.Name)
	if faction == "" {
		faction = raw.Faction.Name
	}

	var rarity string
	if len(raw.Variations) > 0 {
		rarity = raw.Variations[0].Rarity.Name
	}

	return &domain.CardDetails{
		IngameID: id,
		Name:     raw.Name,
		Faction:  faction,
		Patch:    raw.Patch,
		Rarity:   rarity,
		Group:    raw.Group.Name,
		Info:     raw.Info,
		Strength: raw.Strength,
		Href:     raw.Href,
	}
}
