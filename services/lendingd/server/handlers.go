package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"moneymarket/services/lendingd/engine"
)

type amountRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type redeemRequest struct {
	Account string `json:"account"`
	Tokens  string `json:"tokens"`
}

type repayRequest struct {
	Payer    string `json:"payer"`
	Borrower string `json:"borrower,omitempty"`
	Amount   string `json:"amount"`
}

type liquidateRequest struct {
	Liquidator string `json:"liquidator"`
	Borrower   string `json:"borrower"`
	Collateral string `json:"collateral"`
	Amount     string `json:"amount"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Tokens string `json:"tokens"`
}

type enterRequest struct {
	Markets []string `json:"markets"`
}

type exitRequest struct {
	Market string `json:"market"`
}

// apply decodes req, charges the quota for account and runs op.
func (s *Server) apply(w http.ResponseWriter, r *http.Request, req any, account func() (string, string), op func(context.Context) (engine.Receipt, error)) {
	if err := decodeBody(r, req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := s.context(r.Context())
	defer cancel()
	who, amount := account()
	if err := s.charge(ctx, who, chi.URLParam(r, "market"), amount); err != nil {
		s.reject(w, r, err)
		return
	}
	receipt, err := op(ctx)
	if err != nil {
		s.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.Account, req.Amount },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.Mint(ctx, req.Account, market, req.Amount)
		})
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.Account, "" },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.Redeem(ctx, req.Account, market, req.Tokens)
		})
}

func (s *Server) redeemUnderlying(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.Account, req.Amount },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.RedeemUnderlying(ctx, req.Account, market, req.Amount)
		})
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.Account, req.Amount },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.Borrow(ctx, req.Account, market, req.Amount)
		})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.Payer, req.Amount },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.Repay(ctx, req.Payer, req.Borrower, market, req.Amount)
		})
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.Liquidator, req.Amount },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.Liquidate(ctx, req.Liquidator, req.Borrower, market, req.Collateral, req.Amount)
		})
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.From, "" },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.Transfer(ctx, req.From, req.To, market, req.Tokens)
		})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	market := chi.URLParam(r, "market")
	s.apply(w, r, &req, func() (string, string) { return req.Account, "" },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.Approve(ctx, req.Account, market, req.Amount)
		})
}

func (s *Server) enterMarkets(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	account := chi.URLParam(r, "account")
	s.apply(w, r, &req, func() (string, string) { return account, "" },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.EnterMarkets(ctx, account, req.Markets)
		})
}

func (s *Server) exitMarket(w http.ResponseWriter, r *http.Request) {
	var req exitRequest
	account := chi.URLParam(r, "account")
	s.apply(w, r, &req, func() (string, string) { return account, "" },
		func(ctx context.Context) (engine.Receipt, error) {
			return s.engine.ExitMarket(ctx, account, req.Market)
		})
}
