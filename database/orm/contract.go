package orm

import "time"

// ContractType represents the user-selected contract kind.
type ContractType uint8

const (
	Invalid ContractType = iota
	Will
	ICO
	Token
	Airdrop
	InvestmentPool
)

var (
	contractTypeValue = map[ContractType]string{
		Will:           "WILL",
		ICO:            "ICO",
		Token:          "TOKEN",
		Airdrop:        "AIRDROP",
		InvestmentPool: "INVESTMENT_POOL",
	}

	contractValueType = map[string]ContractType{
		"WILL":            Will,
		"ICO":             ICO,
		"TOKEN":           Token,
		"AIRDROP":         Airdrop,
		"INVESTMENT_POOL": InvestmentPool,
	}
)

// StrToType converts a type string to a contract type.
func StrToType(str string) ContractType {
	return contractValueType[str]
}

// String returns the string of the contract type.
func (t ContractType) String() string {
	if _, ok := contractTypeValue[t]; !ok {
		return "unknown"
	}

	return contractTypeValue[t]
}

// State is the lifecycle state of a contract.
type State string

const (
	StateCreated              State = "CREATED"
	StateWaitingForPayment    State = "WAITING_FOR_PAYMENT"
	StateWaitingForDeployment State = "WAITING_FOR_DEPLOYMENT"
	StateWaitingActivation    State = "WAITING_ACTIVATION"
	StateActive               State = "ACTIVE"
	StateUnderCrowdsale       State = "UNDER_CROWDSALE"
	StateEnded                State = "ENDED"
	StateTriggered            State = "TRIGGERED"
	StateCancelled            State = "CANCELLED"
	StateKilled               State = "KILLED"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	switch s {
	case StateEnded, StateTriggered, StateCancelled, StateKilled:
		return true
	}

	return false
}

// Contract is a gorm table definition represents the contracts.
type Contract struct {
	ID           uint64 `gorm:"primary_key"`
	UserID       uint64
	Network      string
	Type         ContractType
	State        State
	OwnerAddress string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
