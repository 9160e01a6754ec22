package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"fleetroute/internal/model"
)

// Builder computes fresh matrices from a travel-time service. Pair
// results are cached in Redis so rebuilding a matrix after adding a
// few locations does not re-query every leg, and requests are rate
// limited to stay inside the provider's quota.
type Builder struct {
	URL     string
	Client  *http.Client
	Limiter *rate.Limiter
	Cache   *redis.Client
	TTL     time.Duration
}

func NewBuilder(url string, rps float64, cache *redis.Client) *Builder {
	if rps <= 0 {
		rps = 10
	}
	return &Builder{
		URL:     url,
		Client:  &http.Client{Timeout: 15 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
		Cache:   cache,
		TTL:     24 * time.Hour,
	}
}

type leg struct {
	DurationSec float64 `json:"duration_sec"`
	DistanceKm  float64 `json:"distance_km"`
}

// Build queries every directed pair and assembles the two matrices.
func (b *Builder) Build(ctx context.Context, locs []Location) (Data, error) {
	n := len(locs)
	times := make(model.Matrix, n)
	dists := make(model.Matrix, n)
	for i := range times {
		times[i] = make([]float64, n)
		dists[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			l, err := b.leg(ctx, locs[i], locs[j])
			if err != nil {
				return Data{}, fmt.Errorf("matrix: leg %d->%d: %w", i, j, err)
			}
			times[i][j] = l.DurationSec
			dists[i][j] = l.DistanceKm
		}
	}
	return Data{Locations: locs, TimeMatrix: times, DistanceMatrix: dists}, nil
}

func (b *Builder) leg(ctx context.Context, from, to Location) (leg, error) {
	key := fmt.Sprintf("fleetroute:leg:%.5f,%.5f:%.5f,%.5f", from.Lat, from.Lng, to.Lat, to.Lng)
	if b.Cache != nil {
		if raw, err := b.Cache.Get(ctx, key).Result(); err == nil {
			var l leg
			if json.Unmarshal([]byte(raw), &l) == nil {
				return l, nil
			}
		}
	}

	if err := b.Limiter.Wait(ctx); err != nil {
		return leg{}, err
	}
	url := fmt.Sprintf("%s?fromLat=%f&fromLng=%f&toLat=%f&toLng=%f", b.URL, from.Lat, from.Lng, to.Lat, to.Lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return leg{}, err
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return leg{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return leg{}, fmt.Errorf("travel service returned %d", resp.StatusCode)
	}
	var l leg
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return leg{}, err
	}

	if b.Cache != nil {
		if raw, err := json.Marshal(l); err == nil {
			_ = b.Cache.Set(ctx, key, raw, b.TTL).Err()
		}
	}
	return l, nil
}
