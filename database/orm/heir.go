package orm

import "time"

// Heir is a gorm table definition represents one beneficiary of a will
// contract.
type Heir struct {
	ID         uint64 `gorm:"primary_key"`
	ContractID uint64
	Address    string
	Email      string
	Percentage uint8
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WhitelistAddress is a gorm table definition represents one whitelisted
// participant of a crowdsale contract.
type WhitelistAddress struct {
	ID         uint64 `gorm:"primary_key"`
	ContractID uint64
	Address    string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
