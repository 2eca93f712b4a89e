package events

import (
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/core/types"
)

const (
	// TypeTokenSupply is emitted whenever a pool token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
	// SupplyReasonBurn identifies redeem driven supply decreases.
	SupplyReasonBurn = "burn"
)

// TokenSupply captures a supply delta for a market's pool token.
type TokenSupply struct {
	Token  string
	Total  *uint256.Int
	Delta  *uint256.Int
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{}
	token := normalizeAsset(e.Token)
	if token == "" {
		token = "UNKNOWN"
	}
	attrs["token"] = token
	attrs["total"] = formatU256(e.Total)
	if e.Delta != nil {
		attrs["delta"] = e.Delta.Dec()
	}
	reason := strings.TrimSpace(e.Reason)
	if reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
