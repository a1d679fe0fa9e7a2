package orm

import "time"

// ItemState is the send state of one airdrop entry.
type ItemState string

const (
	ItemAdded      ItemState = "added"
	ItemProcessing ItemState = "processing"
	ItemSent       ItemState = "sent"
)

// AirdropItem is a gorm table definition represents one (address, amount)
// entry of an airdrop contract. Inactive items were superseded by a
// resubmission and are ignored by reconciliation.
type AirdropItem struct {
	ID         uint64 `gorm:"primary_key"`
	ContractID uint64
	Address    string
	Amount     uint64
	State      ItemState
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
