package events

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{
		Token:  "cusdc",
		Total:  uint256.NewInt(5000),
		Delta:  uint256.NewInt(250),
		Reason: SupplyReasonMint,
	}.Event()
	if evt == nil {
		t.Fatalf("expected event")
	}
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["token"] != "CUSDC" {
		t.Fatalf("unexpected token attr: %s", evt.Attributes["token"])
	}
	if evt.Attributes["total"] != "5000" || evt.Attributes["delta"] != "250" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonMint {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
}

func TestTokenSupplyEventDefaults(t *testing.T) {
	evt := TokenSupply{}.Event()
	if evt.Attributes["token"] != "UNKNOWN" {
		t.Fatalf("unexpected token attr: %s", evt.Attributes["token"])
	}
	if evt.Attributes["total"] != "0" {
		t.Fatalf("unexpected total: %s", evt.Attributes["total"])
	}
	if _, ok := evt.Attributes["delta"]; ok {
		t.Fatalf("delta should be omitted")
	}
}
