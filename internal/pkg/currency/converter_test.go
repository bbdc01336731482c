package currency

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/milanotravel/tourbooking/app/models"
)

type fakeRateRepo struct {
	stored   map[string]float64
	upserted map[string]float64
}

func newFakeRateRepo() *fakeRateRepo {
	return &fakeRateRepo{stored: map[string]float64{}, upserted: map[string]float64{}}
}

func (f *fakeRateRepo) GetByCode(code string) (*models.ExchangeRate, error) {
	if rate, ok := f.stored[code]; ok {
		return &models.ExchangeRate{CurrencyCode: code, RateToBase: rate}, nil
	}
	return nil, assert.AnError
}

func (f *fakeRateRepo) Upsert(code string, rate float64) error {
	f.upserted[code] = rate
	return nil
}

func (f *fakeRateRepo) ListCodes() ([]string, error) {
	codes := make([]string, 0, len(f.stored))
	for code := range f.stored {
		codes = append(codes, code)
	}
	return codes, nil
}

func TestRateBaseCurrencyIsOne(t *testing.T) {
	c := NewConverterWithSource(newFakeRateRepo(), "http://unused")

	rate, fallback := c.Rate("USD")
	assert.Equal(t, 1.0, rate)
	assert.False(t, fallback)

	rate, fallback = c.Rate("")
	assert.Equal(t, 1.0, rate)
	assert.False(t, fallback)
}

func TestRatePrefersStoredRate(t *testing.T) {
	repo := newFakeRateRepo()
	repo.stored["EUR"] = 0.92

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("external source must not be called when a stored rate exists")
	}))
	defer server.Close()

	c := NewConverterWithSource(repo, server.URL)
	rate, fallback := c.Rate("eur")
	assert.Equal(t, 0.92, rate)
	assert.False(t, fallback)
}

func TestRateFetchesAndPersistsUnknownCurrency(t *testing.T) {
	repo := newFakeRateRepo()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"GBP":0.79,"EUR":0.92}}`))
	}))
	defer server.Close()

	c := NewConverterWithSource(repo, server.URL)
	rate, fallback := c.Rate("GBP")
	assert.Equal(t, 0.79, rate)
	assert.False(t, fallback)
	assert.Equal(t, 0.79, repo.upserted["GBP"])
}

func TestRateFallsBackWhenSourceFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewConverterWithSource(newFakeRateRepo(), server.URL)
	rate, fallback := c.Rate("JPY")
	assert.Equal(t, 1.0, rate)
	assert.True(t, fallback)
}

func TestRateFallsBackOnMissingCurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.92}}`))
	}))
	defer server.Close()

	c := NewConverterWithSource(newFakeRateRepo(), server.URL)
	rate, fallback := c.Rate("CHF")
	assert.Equal(t, 1.0, rate)
	assert.True(t, fallback)
}

func TestRefreshStoredRates(t *testing.T) {
	repo := newFakeRateRepo()
	repo.stored["EUR"] = 0.90

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.93}}`))
	}))
	defer server.Close()

	c := NewConverterWithSource(repo, server.URL)
	assert.NoError(t, c.RefreshStoredRates())
	assert.Equal(t, 0.93, repo.upserted["EUR"])
}
