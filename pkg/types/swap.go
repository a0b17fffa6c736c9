package types

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount       string
	PayToken     string
	ReceiveToken string
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	PayAmount     string `json:"pay_amount"`
	PayToken      string `json:"pay_token"`
	ReceiveAmount string `json:"receive_amount"`
	ReceiveToken  string `json:"receive_token"`
	MinReceive    string `json:"min_receive"`
	Rate          string `json:"rate"`
	Fee           string `json:"fee"`
	FeeSource     string `json:"fee_source,omitempty"`
}

// SwapStatus represents the current status of a submitted transaction
type SwapStatus struct {
	TxHash      string `json:"tx_hash"`
	Status      string `json:"status"`
	Ledger      int64  `json:"ledger,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Message     string `json:"message,omitempty"`
}
