package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// TokenTTL is how long a supplier confirmation link stays valid.
const TokenTTL = 48 * time.Hour

// ConfirmationToken is a single-use confirmation credential bound to one
// proposal issuance. Tokens are only issued for externally operated tours;
// internal confirmation bypasses them entirely.
type ConfirmationToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ProposalID uint       `gorm:"index" json:"proposal_id"`
	Proposal   Proposal   `gorm:"foreignKey:ProposalID" json:"-"`
	Token      string     `gorm:"uniqueIndex;type:varchar(64)" json:"-"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `gorm:"type:timestamp;default:null" json:"used_at"`
}

// NewConfirmationToken issues a fresh token for the proposal.
func NewConfirmationToken(proposalID uint) (*ConfirmationToken, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	now := time.Now()
	return &ConfirmationToken{
		ProposalID: proposalID,
		Token:      hex.EncodeToString(b),
		CreatedAt:  now,
		ExpiresAt:  now.Add(TokenTTL),
	}, nil
}

// IsExpired reports whether the token has passed its expiry.
func (t *ConfirmationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed reports whether the token was already consumed.
func (t *ConfirmationToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsValid checks the full validity rule: unused, unexpired, and the bound
// proposal still pending supplier confirmation.
func (t *ConfirmationToken) IsValid(now time.Time, proposalStatus string) bool {
	return !t.IsUsed() && !t.IsExpired(now) && proposalStatus == PROPOSAL_PENDING_SUPPLIER
}
