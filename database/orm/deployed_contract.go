package orm

import "time"

// DeployedContract is a gorm table definition represents one on-chain
// artifact owned by a contract. Address stays empty until a deployment
// confirmation has been verified.
type DeployedContract struct {
	ID              uint64 `gorm:"primary_key"`
	ContractID      uint64
	Address         string
	TxHash          string
	ABI             string
	Bytecode        string
	CompilerVersion string
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
