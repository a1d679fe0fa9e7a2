package orm

import "time"

// DeployAddress is a gorm table definition represents one signing address
// of a network. LockedBy carries the contract currently allowed to send
// transactions from the address, or NULL when the address is free.
type DeployAddress struct {
	ID        uint64 `gorm:"primary_key"`
	Network   string
	Address   string
	LockedBy  *uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName change default table name
func (d DeployAddress) TableName() string {
	return "deploy_addresses"
}
