package creature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hyakumasu/pokedrill/internal/gacha"
	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/reward"
	"github.com/hyakumasu/pokedrill/internal/rng"
	"github.com/hyakumasu/pokedrill/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL  = "https://pokeapi.co/api/v2"
	defaultLanguage = "ja"
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
	fetchManyLimit  = 8
)

// Options tunes the PokeAPI client. Zero values take defaults.
type Options struct {
	BaseURL  string
	Language string        // language code of the localized name
	Attempts int           // total tries per request
	Backoff  time.Duration // wait before retry n is n*Backoff
	Timeout  time.Duration
}

// Client fetches creatures from PokeAPI.
type Client struct {
	baseURL    string
	language   string
	attempts   int
	backoff    time.Duration
	httpClient *http.Client
	catalog    *gacha.Catalog
	rng        rng.Source
	logger     *logger.Logger
}

// NewClient creates a PokeAPI client. Rarity tags come from catalog.
func NewClient(opts Options, catalog *gacha.Catalog, src rng.Source, log *logger.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if catalog == nil {
		catalog = gacha.DefaultCatalog()
	}
	if src == nil {
		src = rng.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    opts.BaseURL,
		language:   opts.Language,
		attempts:   opts.Attempts,
		backoff:    opts.Backoff,
		httpClient: &http.Client{Timeout: opts.Timeout},
		catalog:    catalog,
		rng:        src,
		logger:     log.With(logger.F("adapter", "pokeapi")),
	}
}

// FetchRandom picks an id uniformly, or from the encounter table at boosted levels.
func (c *Client) FetchRandom(ctx context.Context, level int) (models.Creature, error) {
	return c.FetchByID(ctx, RandomID(c.catalog, c.rng, level))
}

// RandomID picks a random-encounter id for level
func RandomID(catalog *gacha.Catalog, src rng.Source, level int) int {
	if !reward.ShouldApplyRarityBoost(level) {
		return catalog.RollAny(src)
	}
	return catalog.RollID(src, gacha.RollRarity(src, gacha.EncounterRates))
}

// FetchByID resolves one creature. Both the creature and its species record are read.
func (c *Client) FetchByID(ctx context.Context, id int) (models.Creature, error) {
	var p apiPokemon
	if err := c.getJSON(ctx, id, "/pokemon/"+strconv.Itoa(id), &p); err != nil {
		return models.Creature{}, err
	}
	var s apiSpecies
	if err := c.getJSON(ctx, id, "/pokemon-species/"+strconv.Itoa(id), &s); err != nil {
		return models.Creature{}, err
	}

	cr := models.Creature{
		ID:            p.ID,
		Name:          p.Name,
		LocalizedName: s.localizedName(c.language),
		ImageURL:      p.Sprites.imageURL(),
		Rarity:        c.catalog.RarityOf(p.ID),
	}
	if cr.ID == 0 {
		cr.ID = id
	}
	if cr.LocalizedName == "" {
		cr.LocalizedName = cr.Name
	}
	return cr, nil
}

// FetchMany resolves ids concurrently and keeps their order.
func (c *Client) FetchMany(ctx context.Context, ids []int) ([]models.Creature, error) {
	return fetchMany(ctx, ids, c.FetchByID)
}

func fetchMany(ctx context.Context, ids []int, fetch func(context.Context, int) (models.Creature, error)) ([]models.Creature, error) {
	out := make([]models.Creature, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchManyLimit)
	for i, id := range ids {
		g.Go(func() error {
			cr, err := fetch(gctx, id)
			if err != nil {
				return err
			}
			out[i] = cr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON GETs path and decodes it into dst, retrying transient failures.
func (c *Client) getJSON(ctx context.Context, id int, path string, dst any) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("PokeAPI retry",
				logger.F("path", path),
				logger.F("attempt", strconv.Itoa(attempt)),
				logger.F("reason", lastErr.Error()))
			if err := sleep(ctx, time.Duration(attempt-1)*c.backoff); err != nil {
				return &FetchError{ID: id, Attempts: attempt - 1, Err: err}
			}
		}

		retry, err := c.get(ctx, path, dst)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return &FetchError{ID: id, Attempts: attempt, Err: err}
		}
	}
	c.logger.Error("PokeAPI request failed", logger.F("path", path), logger.F("error", lastErr.Error()))
	return &FetchError{ID: id, Attempts: c.attempts, Err: lastErr}
}

// get performs one request. It reports whether a failure is worth retrying.
func (c *Client) get(ctx context.Context, path string, dst any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, fmt.Errorf("decode json: %w", err)
	}
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNotFound reports whether err means the creature does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
