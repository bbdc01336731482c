package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetTourRepository returns the tour repository instance
func (f *Factory) GetTourRepository() TourRepository {
	return f.GetRepositories().Tour
}

// GetProposalRepository returns the proposal repository instance
func (f *Factory) GetProposalRepository() ProposalRepository {
	return f.GetRepositories().Proposal
}

// GetTokenRepository returns the confirmation token repository instance
func (f *Factory) GetTokenRepository() TokenRepository {
	return f.GetRepositories().Token
}

// GetBookingRepository returns the booking repository instance
func (f *Factory) GetBookingRepository() BookingRepository {
	return f.GetRepositories().Booking
}

// GetExchangeRateRepository returns the exchange rate repository instance
func (f *Factory) GetExchangeRateRepository() ExchangeRateRepository {
	return f.GetRepositories().ExchangeRate
}

var (
	globalFactory *Factory
	globalMu      sync.Mutex
)

// SetGlobalFactory stores the process-wide factory used by handlers that have
// no injection point.
func SetGlobalFactory(f *Factory) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalFactory = f
}

// GetGlobalFactory returns the process-wide factory.
func GetGlobalFactory() *Factory {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalFactory
}
