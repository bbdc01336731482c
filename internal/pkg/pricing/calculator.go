package pricing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/milanotravel/tourbooking/app/models"
	"github.com/milanotravel/tourbooking/app/repository"
	"github.com/milanotravel/tourbooking/internal/pkg/cache"
	"github.com/milanotravel/tourbooking/internal/pkg/currency"
)

const quoteCacheTTL = 10 * time.Minute

// CapacityReader is the slice of the capacity tracker the calculator needs.
type CapacityReader interface {
	OccupancyRatio(tour *models.Tour, now time.Time) (float64, error)
	CheckTrip(tour *models.Tour, travelDate time.Time, occupants int) error
}

// RateResolver resolves a currency code to a conversion rate. The boolean
// result reports whether the 1.0 fallback was used.
type RateResolver interface {
	Rate(code string) (float64, bool)
}

// Request carries the customer's party for one tour and date.
type Request struct {
	TourID     uint      `json:"tour_id"`
	TravelDate time.Time `json:"travel_date"`
	Adults     int       `json:"adults"`
	ChildAges  []int     `json:"child_ages"`
	Currency   string    `json:"currency"`
}

// Quote is the full pricing answer for a request. Configurations are sorted
// by ascending total price and exactly one is marked cheapest.
type Quote struct {
	TourID         uint                `json:"tour_id"`
	TourName       string              `json:"tour_name"`
	TravelDate     time.Time           `json:"travel_date"`
	Adults         int                 `json:"adults"`
	Children       int                 `json:"children"`
	Infants        int                 `json:"infants"`
	ChildAges      []int               `json:"child_ages"`
	Currency       string              `json:"currency"`
	ExchangeRate   float64             `json:"exchange_rate"`
	RateFallback   bool                `json:"rate_fallback"`
	OccupancyRatio float64             `json:"occupancy_ratio"`
	Configurations []RoomConfiguration `json:"configurations"`
}

// Calculator prices a party against a tour. It holds no per-request state,
// so a single instance serves concurrent requests.
type Calculator struct {
	tours    repository.TourRepository
	capacity CapacityReader
	rates    RateResolver
	useCache bool
}

func NewCalculator(tours repository.TourRepository, capacity CapacityReader, rates RateResolver) *Calculator {
	return &Calculator{tours: tours, capacity: capacity, rates: rates, useCache: true}
}

// NewCalculatorWithoutCache skips the redis quote cache. Used by tests.
func NewCalculatorWithoutCache(tours repository.TourRepository, capacity CapacityReader, rates RateResolver) *Calculator {
	return &Calculator{tours: tours, capacity: capacity, rates: rates}
}

// QuoteCachePattern matches every cached quote for a tour. The finalizer
// flushes it after committing a booking, since the occupancy ratio feeding
// the demand factor has changed.
func QuoteCachePattern(tourID uint) string {
	return fmt.Sprintf("pricing:%d:*", tourID)
}

func quoteCacheKey(req Request) string {
	ages := make([]string, len(req.ChildAges))
	for i, age := range req.ChildAges {
		ages[i] = fmt.Sprintf("%d", age)
	}
	return fmt.Sprintf("pricing:%d:%s:%d:%s:%s",
		req.TourID,
		req.TravelDate.Format("2006-01-02"),
		req.Adults,
		strings.Join(ages, ","),
		strings.ToUpper(req.Currency),
	)
}

// ComputeConfigurations prices every way of seating the party. Validation
// problems come back as *ValidationError, a well-formed party that cannot be
// seated as *InfeasibleError, and insufficient remaining slots as
// *capacity.CapacityError.
func (c *Calculator) ComputeConfigurations(req Request) (*Quote, error) {
	tour, err := c.tours.GetByID(req.TourID)
	if err != nil {
		return nil, err
	}

	if err := c.validate(tour, req); err != nil {
		return nil, err
	}

	if c.useCache {
		if cached, err := cache.Get(quoteCacheKey(req)); err == nil && cached != "" {
			var quote Quote
			if err := json.Unmarshal([]byte(cached), &quote); err == nil {
				return &quote, nil
			}
		}
	}

	children, infants := classifyAges(tour, req.ChildAges)
	if req.Adults == 0 {
		return nil, &InfeasibleError{Reason: InfeasibleNoAdults}
	}

	// Infants never occupy a capacity slot.
	if err := c.capacity.CheckTrip(tour, req.TravelDate, req.Adults+children); err != nil {
		return nil, err
	}

	ratio, err := c.capacity.OccupancyRatio(tour, time.Now())
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(req.Currency))
	if code == "" {
		code = currency.BaseCurrency
	}
	rate, fallback := c.rates.Rate(code)
	if fallback {
		code = currency.BaseCurrency
		rate = 1.0
	}

	seasonal := tour.SeasonalFactor
	if seasonal <= 0 {
		log.Warnf("[Pricing] tour %d has non-positive seasonal factor %f, using 1.0", tour.ID, seasonal)
		seasonal = 1.0
	}
	factor := seasonal * (1 + tour.DemandFactor*ratio) * rate

	quote := &Quote{
		TourID:         tour.ID,
		TourName:       tour.Name,
		TravelDate:     req.TravelDate,
		Adults:         req.Adults,
		Children:       children,
		Infants:        infants,
		ChildAges:      req.ChildAges,
		Currency:       code,
		ExchangeRate:   rate,
		RateFallback:   fallback,
		OccupancyRatio: ratio,
	}

	switch tour.PricingMode {
	case models.PRICING_PER_PERSON:
		quote.Configurations = []RoomConfiguration{perPersonConfiguration(tour, req.Adults, children, infants, factor, code)}
	default:
		configs, err := roomConfigurations(tour, req.Adults, children, infants, factor, code)
		if err != nil {
			return nil, err
		}
		quote.Configurations = configs
	}

	c.cacheQuote(req, quote)
	return quote, nil
}

func (c *Calculator) validate(tour *models.Tour, req Request) error {
	if req.Adults < 0 {
		return &ValidationError{Field: "adults", Message: "cannot be negative"}
	}
	if req.Adults == 0 && len(req.ChildAges) == 0 {
		return &ValidationError{Field: "adults", Message: "at least one traveller is required"}
	}
	for _, age := range req.ChildAges {
		if age < 0 {
			return &ValidationError{Field: "child_ages", Message: "ages cannot be negative"}
		}
		if age > tour.ChildAgeMax {
			return &ValidationError{
				Field:   "child_ages",
				Message: fmt.Sprintf("age %d exceeds the child limit of %d, book as an adult", age, tour.ChildAgeMax),
			}
		}
	}

	if req.TravelDate.IsZero() {
		return &ValidationError{Field: "travel_date", Message: "is required"}
	}
	if req.TravelDate.Before(tour.StartDate) || req.TravelDate.After(tour.EndDate) {
		return &ValidationError{Field: "travel_date", Message: "is outside the bookable window"}
	}
	if !tour.RunsOn(req.TravelDate) {
		return &ValidationError{Field: "travel_date", Message: "the tour does not run on this day"}
	}

	switch tour.PricingMode {
	case models.PRICING_PER_PERSON:
		if !tour.HasPerPersonPrices() {
			return models.ErrNoPricesForMode
		}
	default:
		if !tour.HasRoomPrices() {
			return models.ErrNoPricesForMode
		}
	}
	return nil
}

// classifyAges splits declared child ages into children and infants using
// the tour's age band. Ages above the band were rejected during validation.
func classifyAges(tour *models.Tour, ages []int) (children, infants int) {
	for _, age := range ages {
		if age < tour.ChildAgeMin {
			infants++
		} else {
			children++
		}
	}
	return children, infants
}

func perPersonConfiguration(tour *models.Tour, adults, children, infants int, factor float64, code string) RoomConfiguration {
	total := float64(adults)*tour.PriceAdult +
		float64(children)*tour.PriceChild +
		float64(infants)*tour.PriceInfant
	return RoomConfiguration{
		Children:    children,
		Infants:     infants,
		TotalPrice:  RoundPrice(total * factor),
		Currency:    code,
		Cheapest:    true,
		PricingMode: models.PRICING_PER_PERSON,
	}
}

// roomConfigurations enumerates every split of the adults into whole rooms.
// Each room mix must seat exactly the adults, and children plus infants may
// not exceed the per-room child allowance across the mix.
func roomConfigurations(tour *models.Tour, adults, children, infants int, factor float64, code string) ([]RoomConfiguration, error) {
	maxChildren := tour.EffectiveMaxChildrenPerRoom()
	configs := make([]RoomConfiguration, 0, 4)
	childLimitHit := false

	for singles := 0; singles <= adults; singles++ {
		rem := adults - singles
		for doubles := 0; doubles <= rem/2; doubles++ {
			rem2 := rem - doubles*2
			for triples := 0; triples <= rem2/3; triples++ {
				if rem2-triples*3 != 0 {
					continue
				}
				totalRooms := singles + doubles + triples
				if totalRooms == 0 {
					continue
				}
				if children+infants > totalRooms*maxChildren {
					childLimitHit = true
					continue
				}

				base := float64(singles)*tour.PriceSingle +
					float64(doubles)*tour.PriceDouble +
					float64(triples)*tour.PriceTriple +
					float64(children)*tour.PriceChild +
					float64(infants)*tour.PriceInfant

				configs = append(configs, RoomConfiguration{
					Singles:     singles,
					Doubles:     doubles,
					Triples:     triples,
					TotalRooms:  totalRooms,
					Children:    children,
					Infants:     infants,
					TotalPrice:  RoundPrice(base * factor),
					Currency:    code,
					PricingMode: models.PRICING_PER_ROOM,
				})
			}
		}
	}

	if len(configs) == 0 {
		if childLimitHit {
			return nil, &InfeasibleError{Reason: InfeasibleChildLimit}
		}
		return nil, &InfeasibleError{Reason: InfeasibleNoRoomOptions}
	}

	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].TotalPrice < configs[j].TotalPrice
	})
	configs[0].Cheapest = true
	return configs, nil
}

func (c *Calculator) cacheQuote(req Request, quote *Quote) {
	if !c.useCache {
		return
	}
	raw, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := cache.Set(quoteCacheKey(req), string(raw), quoteCacheTTL); err != nil {
		log.Debugf("[Pricing] could not cache quote: %v", err)
	}
}
