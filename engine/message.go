package engine

// Message is one decoded inbound event. The watcher infrastructure
// publishes a flat JSON tuple; only the fields relevant to the event
// type are populated.
type Message struct {
	Type              string       `json:"type"`
	ContractID        uint64       `json:"contractId"`
	CrowdsaleID       uint64       `json:"crowdsaleId"`
	Address           string       `json:"address"`
	TxHash            string       `json:"transactionHash"`
	TxSuccess         bool         `json:"transactionStatus"`
	Value             uint64       `json:"value"`
	Status            string       `json:"status"`
	StartTime         int64        `json:"startTime"`
	EndTime           int64        `json:"endTime"`
	InvestmentAddress string       `json:"investmentAddress"`
	TokenAddress      string       `json:"tokenAddress"`
	Items             []ReportItem `json:"airdroppedAddresses"`
}

// ReportItem is one externally reported airdrop outcome entry.
type ReportItem struct {
	Address string `json:"address"`
	Amount  uint64 `json:"value"`
}
