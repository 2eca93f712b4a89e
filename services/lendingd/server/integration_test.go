package server

import (
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"moneymarket/native/lending"
	"moneymarket/native/lending/state"
	"moneymarket/services/lendingd/engine"
	"moneymarket/storage"
)

const (
	integrationAdmin      = "0x00000000000000000000000000000000000000ad"
	integrationUnderlying = "0x0000000000000000000000000000000000000d01"
)

func newLocalEngine(t *testing.T) *engine.Local {
	t.Helper()
	db := storage.NewMemDB()
	e := lending.NewEngine(state.New(db), mustAddress(t, integrationAdmin))
	genesis := lending.Genesis{
		Comptroller: lending.ComptrollerGenesis{Admin: integrationAdmin},
		Markets: []lending.MarketGenesis{{
			Address:    testMarket,
			Underlying: integrationUnderlying,
			Symbol:     "cUSD",
			Price:      "1",
			Model:      lending.ModelConfig{Kink: "0.8"},
		}},
		Balances: []lending.BalanceGenesis{{Asset: integrationUnderlying, Holder: testAccount, Amount: "500"}},
	}
	if err := lending.Bootstrap(e, genesis, lending.NewSimplePriceOracle(), true); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	feed := engine.NewFeed(16, nil)
	e.SetEmitter(feed)
	return engine.NewLocal(e, db, feed, nil)
}

func mustAddress(t *testing.T, hex string) common.Address {
	t.Helper()
	addr, err := lending.ParseAddress(hex)
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	return addr
}

func TestIntegrationMintOverHTTP(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, newLocalEngine(t), Options{})
	mint := `{"account":"` + testAccount + `","amount":"200"}`

	res := do(t, h, http.MethodPost, "/markets/"+testMarket+"/mint", mint, bearer())
	if res.Code != http.StatusConflict {
		t.Fatalf("expected mint without allowance to be rejected, got %d: %s", res.Code, res.Body.String())
	}
	var failure errorBody
	decode(t, res, &failure)
	if failure.Code != "TOKEN_INSUFFICIENT_ALLOWANCE" {
		t.Fatalf("unexpected failure body: %+v", failure)
	}

	res = do(t, h, http.MethodPost, "/markets/"+testMarket+"/approve", `{"account":"`+testAccount+`","amount":"max"}`, bearer())
	if res.Code != http.StatusOK {
		t.Fatalf("approve failed %d: %s", res.Code, res.Body.String())
	}
	res = do(t, h, http.MethodPost, "/markets/"+testMarket+"/mint", mint, bearer())
	if res.Code != http.StatusOK {
		t.Fatalf("mint failed %d: %s", res.Code, res.Body.String())
	}

	res = do(t, h, http.MethodGet, "/accounts/"+testAccount+"/markets/"+testMarket, "", nil)
	var position engine.Position
	decode(t, res, &position)
	if position.Tokens != "200" || position.WalletBalance != "300" {
		t.Fatalf("unexpected position: %+v", position)
	}

	res = do(t, h, http.MethodPost, "/markets/"+testMarket+"/borrow", `{"account":"`+testAccount+`","amount":"1"}`, bearer())
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected borrow without collateral to fail with 422, got %d", res.Code)
	}
	var rejection errorBody
	decode(t, res, &rejection)
	if rejection.Reason != "INSUFFICIENT_LIQUIDITY" || rejection.Info != "BORROW_COMPTROLLER_REJECTION" {
		t.Fatalf("unexpected rejection body: %+v", rejection)
	}

	res = do(t, h, http.MethodGet, "/markets/0x0000000000000000000000000000000000000bad", "", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected unknown market to be 404, got %d", res.Code)
	}
}
