package pricing

import "math"

// RoomConfiguration is one priced way of seating the party. Per-person
// quotes carry a single configuration with zero rooms.
type RoomConfiguration struct {
	Singles     int     `json:"singles"`
	Doubles     int     `json:"doubles"`
	Triples     int     `json:"triples"`
	TotalRooms  int     `json:"total_rooms"`
	Children    int     `json:"children"`
	Infants     int     `json:"infants"`
	TotalPrice  float64 `json:"total_price"`
	Currency    string  `json:"currency"`
	Cheapest    bool    `json:"cheapest"`
	PricingMode string  `json:"pricing_mode"`
}

// Beds returns how many adults this room mix sleeps.
func (c *RoomConfiguration) Beds() int {
	return c.Singles + 2*c.Doubles + 3*c.Triples
}

// RoundPrice rounds to two decimals, halves up. Prices are never negative,
// so this matches half away from zero. All customer facing amounts pass
// through here exactly once, after every factor has been applied.
func RoundPrice(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
