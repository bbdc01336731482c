package currency

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/milanotravel/tourbooking/app/repository"
	"github.com/milanotravel/tourbooking/internal/pkg/cache"
	"github.com/milanotravel/tourbooking/internal/pkg/env"
)

// BaseCurrency is the currency all tour prices are stored in.
const BaseCurrency = "USD"

const (
	rateCacheKeyPrefix = "fxrate:"
	rateCacheTTL       = 1 * time.Hour

	// fetchTimeout bounds the external rate call so pricing can never hang
	// on a slow provider.
	fetchTimeout = 5 * time.Second
)

// RateFetchError reports a failed external rate lookup. It is recovered
// locally by falling back to 1.0 and never surfaces as a pricing failure.
type RateFetchError struct {
	Code string
	Err  error
}

func (e *RateFetchError) Error() string {
	return fmt.Sprintf("failed to fetch exchange rate for %s: %v", e.Code, e.Err)
}

func (e *RateFetchError) Unwrap() error {
	return e.Err
}

// Converter resolves exchange rates relative to BaseCurrency, reading
// through redis and the exchange_rates table before hitting the external
// source. Instances are injected; there is no process-wide converter.
type Converter struct {
	rates     repository.ExchangeRateRepository
	client    *http.Client
	sourceURL string
	useCache  bool
}

// NewConverter creates a converter using the configured external source.
func NewConverter(rates repository.ExchangeRateRepository) *Converter {
	url := fmt.Sprintf("%s?app_id=%s",
		env.GetEnv("EXCHANGE_RATES_URL", "https://api.openexchangerates.org/latest.json"),
		env.GetEnv("EXCHANGE_RATES_API_KEY", ""),
	)
	return &Converter{
		rates:     rates,
		client:    &http.Client{Timeout: fetchTimeout},
		sourceURL: url,
		useCache:  true,
	}
}

// NewConverterWithSource creates a converter against an explicit source URL
// and without the redis read-through. Used by tests.
func NewConverterWithSource(rates repository.ExchangeRateRepository, sourceURL string) *Converter {
	return &Converter{
		rates:     rates,
		client:    &http.Client{Timeout: fetchTimeout},
		sourceURL: sourceURL,
	}
}

// Rate resolves the conversion rate for a currency code. The second result
// reports whether the 1.0 fallback was used because no usable rate could be
// obtained. The returned rate is always strictly positive and a lookup
// failure never aborts pricing.
func (c *Converter) Rate(code string) (float64, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == BaseCurrency {
		return 1.0, false
	}

	if c.useCache {
		if rate, err := cache.GetFloat(rateCacheKeyPrefix + code); err == nil && rate > 0 {
			return rate, false
		}
	}

	if stored, err := c.rates.GetByCode(code); err == nil && stored.RateToBase > 0 {
		c.cacheRate(code, stored.RateToBase)
		return stored.RateToBase, false
	}

	rate, err := c.fetch(code)
	if err != nil {
		log.Warnf("[Currency] %v, falling back to 1.0", err)
		return 1.0, true
	}
	if rate <= 0 {
		log.Warnf("[Currency] external source returned non-positive rate %f for %s, falling back to 1.0", rate, code)
		return 1.0, true
	}

	if err := c.rates.Upsert(code, rate); err != nil {
		log.Errorf("[Currency] failed to persist rate for %s: %v", code, err)
	}
	c.cacheRate(code, rate)
	return rate, false
}

// RefreshStoredRates re-fetches every persisted currency. Run by the nightly
// scheduler job so stored rates stay warm between customer requests.
func (c *Converter) RefreshStoredRates() error {
	codes, err := c.rates.ListCodes()
	if err != nil {
		return err
	}

	var lastErr error
	for _, code := range codes {
		rate, err := c.fetch(code)
		if err != nil || rate <= 0 {
			log.Warnf("[Currency] refresh skipped for %s: %v", code, err)
			lastErr = err
			continue
		}
		if err := c.rates.Upsert(code, rate); err != nil {
			log.Errorf("[Currency] refresh failed to persist %s: %v", code, err)
			lastErr = err
			continue
		}
		c.cacheRate(code, rate)
	}
	return lastErr
}

func (c *Converter) cacheRate(code string, rate float64) {
	if !c.useCache {
		return
	}
	if err := cache.Set(rateCacheKeyPrefix+code, rate, rateCacheTTL); err != nil {
		log.Debugf("[Currency] could not cache rate for %s: %v", code, err)
	}
}

func (c *Converter) fetch(code string) (float64, error) {
	resp, err := c.client.Get(c.sourceURL)
	if err != nil {
		return 0, &RateFetchError{Code: code, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &RateFetchError{Code: code, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, &RateFetchError{Code: code, Err: err}
	}

	rate, ok := payload.Rates[code]
	if !ok {
		return 0, &RateFetchError{Code: code, Err: fmt.Errorf("currency not in response")}
	}
	return rate, nil
}
