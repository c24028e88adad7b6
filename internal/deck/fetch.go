package deck

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves a deck's cards from an upstream card-pack API. The
// concrete upstream contract is an external collaborator; Fetch only needs
// to honor this interface.
type Fetcher interface {
	Fetch(code string) (Deck, error)
}

// HTTPFetcher fetches decks from a crcast-shaped card-pack API.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher builds a fetcher against the given base URL, e.g.
// "https://api.crcast.cc/v1/cc/decks".
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type rawCard struct {
	Text []string `json:"text"`
}

type rawDeckResponse struct {
	Name      string    `json:"name"`
	Watermark string    `json:"watermark"`
	Calls     []rawCard `json:"calls"`
	Responses []rawCard `json:"responses"`
}

// Fetch retrieves and converts the named deck into our Deck shape. Black
// card text fields are joined with " _ " and Fields is one less than the
// number of text segments, matching the upstream's blank-count convention.
func (f *HTTPFetcher) Fetch(code string) (Deck, error) {
	url := fmt.Sprintf("%s/%s/all", f.BaseURL, code)
	resp, err := f.Client.Get(url)
	if err != nil {
		return Deck{}, fmt.Errorf("deck fetch %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Deck{}, fmt.Errorf("deck fetch %s: upstream status %d", code, resp.StatusCode)
	}

	var raw rawDeckResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Deck{}, fmt.Errorf("deck fetch %s: decode: %w", code, err)
	}

	blacks := make([]BlackCard, 0, len(raw.Calls))
	for _, c := range raw.Calls {
		fields := len(c.Text) - 1
		if fields < 0 {
			fields = 0
		}
		blacks = append(blacks, BlackCard{Text: strings.Join(c.Text, " _ "), Fields: fields})
	}

	whites := make([]WhiteCard, 0, len(raw.Responses))
	for _, c := range raw.Responses {
		if len(c.Text) == 0 {
			continue
		}
		whites = append(whites, WhiteCard{Text: c.Text[0]})
	}

	return Deck{
		Name:      raw.Name,
		DeckCode:  raw.Watermark,
		Blacks:    blacks,
		Whites:    whites,
		FetchedAt: now(),
	}, nil
}

// UpdateAllCached refreshes every deck currently in cacheDir concurrently,
// bounded by an errgroup, and rewrites each to disk. A deck whose upstream
// refetch or save fails keeps its previously cached copy in the result;
// such per-deck failures are discarded and not reported. The returned
// error is non-nil only when the cache directory itself cannot be read.
func UpdateAllCached(cacheDir string, fetcher Fetcher) ([]Deck, error) {
	cached, err := AllCached(cacheDir)
	if err != nil {
		return nil, err
	}

	result := make([]Deck, len(cached))
	copy(result, cached)

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, d := range cached {
		i, d := i, d
		g.Go(func() error {
			fresh, ferr := fetcher.Fetch(d.DeckCode)
			if ferr != nil {
				// keep the stale cached copy
				return nil
			}
			if serr := Save(cacheDir, fresh); serr != nil {
				return nil
			}
			result[i] = fresh
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}
