package parser

import (
	"fmt"
	"regexp"
	"strings"

	"stellar-swap/pkg/types"
)

var swapPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)\s+([A-Z0-9]+)\s+(?:TO|FOR|->)\s+([A-Z0-9]+)$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 100 XLM to USDC"
//   - "1.5 ETH for XLM"
//   - "25 USDC -> XLM"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: '<amount> <token> to <token>' (e.g., '100 XLM to USDC')")
	}

	return &types.SwapRequest{
		Amount:       matches[1],
		PayToken:     NormalizeTokenSymbol(matches[2]),
		ReceiveToken: NormalizeTokenSymbol(matches[3]),
	}, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.PayToken == "" {
		return fmt.Errorf("pay token is required")
	}
	if req.ReceiveToken == "" {
		return fmt.Errorf("receive token is required")
	}
	if req.PayToken == req.ReceiveToken {
		return fmt.Errorf("cannot swap %s for itself", req.PayToken)
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"LUMEN":   "XLM",
		"LUMENS":  "XLM",
		"STELLAR": "XLM",
		"WBTC":    "BTC",
		"WETH":    "ETH",
		"WSOL":    "SOL",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
