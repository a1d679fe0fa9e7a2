package orm

import "time"

// WillDetails is a gorm table definition represents the will contract
// configuration and its periodic check bookkeeping.
type WillDetails struct {
	ID              uint64 `gorm:"primary_key"`
	ContractID      uint64
	UserAddress     string
	CheckInterval   int64
	ActiveTo        time.Time
	LastCheck       *time.Time
	NextCheck       *time.Time
	LastReset       *time.Time
	LastPressAlive  *time.Time
	Duty            uint64
	DeployedID      uint64
	Email           string
	PlatformAlive   bool
	PlatformCancel  bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ICODetails is a gorm table definition represents the crowdsale contract
// configuration. Token and crowdsale reference the two owned artifacts.
type ICODetails struct {
	ID                uint64 `gorm:"primary_key"`
	ContractID        uint64
	SoftCap           uint64
	HardCap           uint64
	TokenName         string
	TokenSymbol       string
	Decimals          uint8
	Rate              uint64
	StartDate         int64
	StopDate          int64
	AdminAddress      string
	ColdWalletAddress string
	ContinueMinting   bool
	ReusedToken       bool
	AllowChangeDates  bool
	Whitelist         bool
	TokenID           uint64
	CrowdsaleID       uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TokenDetails is a gorm table definition represents the standalone token
// contract configuration.
type TokenDetails struct {
	ID            uint64 `gorm:"primary_key"`
	ContractID    uint64
	TokenName     string
	TokenSymbol   string
	Decimals      uint8
	AdminAddress  string
	FutureMinting bool
	DeployedID    uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AirdropDetails is a gorm table definition represents the airdrop contract
// configuration.
type AirdropDetails struct {
	ID           uint64 `gorm:"primary_key"`
	ContractID   uint64
	AdminAddress string
	TokenAddress string
	DeployedID   uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InvestmentPoolDetails is a gorm table definition represents the
// investment pool contract configuration.
type InvestmentPoolDetails struct {
	ID                uint64 `gorm:"primary_key"`
	ContractID        uint64
	SoftCap           uint64
	HardCap           uint64
	AdminAddress      string
	InvestmentAddress string
	TokenAddress      string
	DeployedID        uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
