package lending

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/irm"
)

// Genesis seeds the protocol: risk parameters, listed markets, prices, credit
// lines and initial token balances. Decimal fields are human readable
// ("0.75"); amounts are integers in the asset's smallest unit.
type Genesis struct {
	Comptroller  ComptrollerGenesis   `toml:"comptroller" json:"comptroller"`
	Markets      []MarketGenesis      `toml:"markets" json:"markets"`
	CreditLimits []CreditLimitGenesis `toml:"credit_limits" json:"credit_limits"`
	Balances     []BalanceGenesis     `toml:"balances" json:"balances"`
}

type ComptrollerGenesis struct {
	Admin                string `toml:"Admin" json:"admin"`
	PauseGuardian        string `toml:"PauseGuardian" json:"pause_guardian"`
	CloseFactor          string `toml:"CloseFactor" json:"close_factor"`
	LiquidationIncentive string `toml:"LiquidationIncentive" json:"liquidation_incentive"`
}

type MarketGenesis struct {
	Address             string      `toml:"Address" json:"address"`
	Underlying          string      `toml:"Underlying" json:"underlying"`
	Symbol              string      `toml:"Symbol" json:"symbol"`
	Version             string      `toml:"Version" json:"version"`
	Admin               string      `toml:"Admin" json:"admin"`
	Model               ModelConfig `toml:"model" json:"model"`
	ReserveFactor       string      `toml:"ReserveFactor" json:"reserve_factor"`
	InitialExchangeRate string      `toml:"InitialExchangeRate" json:"initial_exchange_rate"`
	CollateralFactor    string      `toml:"CollateralFactor" json:"collateral_factor"`
	BorrowRateMax       string      `toml:"BorrowRateMax" json:"borrow_rate_max"`
	FlashloanFeeBps     uint64      `toml:"FlashloanFeeBps" json:"flashloan_fee_bps"`
	CollateralCap       string      `toml:"CollateralCap" json:"collateral_cap"`
	SupplyCap           string      `toml:"SupplyCap" json:"supply_cap"`
	BorrowCap           string      `toml:"BorrowCap" json:"borrow_cap"`
	Price               string      `toml:"Price" json:"price"`
	RateExclusions      []string    `toml:"RateExclusions" json:"rate_exclusions"`
}

// ModelConfig selects and parameterises an interest rate curve. Rates are
// annual decimals; kinks and the roof are utilisation decimals.
type ModelConfig struct {
	Kind                  string          `toml:"Kind" json:"kind"`
	BaseRatePerYear       string          `toml:"BaseRatePerYear" json:"base_rate_per_year"`
	MultiplierPerYear     string          `toml:"MultiplierPerYear" json:"multiplier_per_year"`
	JumpMultiplierPerYear string          `toml:"JumpMultiplierPerYear" json:"jump_multiplier_per_year"`
	Kink                  string          `toml:"Kink" json:"kink"`
	Kink2                 string          `toml:"Kink2" json:"kink2"`
	Roof                  string          `toml:"Roof" json:"roof"`
	Segments              []SegmentConfig `toml:"segments" json:"segments"`
}

type SegmentConfig struct {
	Start        string `toml:"Start" json:"start"`
	SlopePerYear string `toml:"SlopePerYear" json:"slope_per_year"`
}

type CreditLimitGenesis struct {
	Protocol string `toml:"Protocol" json:"protocol"`
	Market   string `toml:"Market" json:"market"`
	Limit    string `toml:"Limit" json:"limit"`
}

// BalanceGenesis credits Holder with Amount of Asset. An empty Asset means
// the native currency.
type BalanceGenesis struct {
	Asset  string `toml:"Asset" json:"asset"`
	Holder string `toml:"Holder" json:"holder"`
	Amount string `toml:"Amount" json:"amount"`
}

// ParseAddress accepts a 0x-prefixed hex address.
func ParseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseOptionalAddress(value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	return ParseAddress(value)
}

func parseAmount(value string) (*uint256.Int, error) {
	return fixedpoint.ParseScaled(value, 0)
}

func parseExpDefault(value string, fallback fixedpoint.Exp) (fixedpoint.Exp, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return fixedpoint.ParseExp(value)
}

// Build constructs the configured interest rate model.
func (c ModelConfig) Build() (irm.Model, error) {
	base, err := fixedpoint.ParseScaled(c.BaseRatePerYear, fixedpoint.Scale)
	if err != nil {
		return nil, fmt.Errorf("base rate: %w", err)
	}
	multiplier, err := fixedpoint.ParseScaled(c.MultiplierPerYear, fixedpoint.Scale)
	if err != nil {
		return nil, fmt.Errorf("multiplier: %w", err)
	}
	jump, err := fixedpoint.ParseScaled(c.JumpMultiplierPerYear, fixedpoint.Scale)
	if err != nil {
		return nil, fmt.Errorf("jump multiplier: %w", err)
	}
	kink, err := fixedpoint.ParseScaled(c.Kink, fixedpoint.Scale)
	if err != nil {
		return nil, fmt.Errorf("kink: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Kind)) {
	case "", "jump_rate", "jump":
		return irm.NewJumpRateModel(base, multiplier, jump, kink), nil
	case "triple_slope":
		kink2, err := fixedpoint.ParseScaled(c.Kink2, fixedpoint.Scale)
		if err != nil {
			return nil, fmt.Errorf("kink2: %w", err)
		}
		roof, err := fixedpoint.ParseScaled(c.Roof, fixedpoint.Scale)
		if err != nil {
			return nil, fmt.Errorf("roof: %w", err)
		}
		return irm.NewTripleSlopeRateModel(base, multiplier, jump, kink, kink2, roof)
	case "piecewise":
		segments := make([]irm.Segment, 0, len(c.Segments))
		for i, seg := range c.Segments {
			start, err := fixedpoint.ParseScaled(seg.Start, fixedpoint.Scale)
			if err != nil {
				return nil, fmt.Errorf("segment %d start: %w", i, err)
			}
			slope, err := fixedpoint.ParseScaled(seg.SlopePerYear, fixedpoint.Scale)
			if err != nil {
				return nil, fmt.Errorf("segment %d slope: %w", i, err)
			}
			segments = append(segments, irm.Segment{Start: start, Slope: slope})
		}
		roof, err := fixedpoint.ParseScaled(c.Roof, fixedpoint.Scale)
		if err != nil {
			return nil, fmt.Errorf("roof: %w", err)
		}
		return irm.NewPiecewiseRateModel(base, segments, roof)
	default:
		return nil, fmt.Errorf("unknown interest rate model %q", c.Kind)
	}
}

// MarketConfig converts the genesis entry into a listing request.
func (g MarketGenesis) MarketConfig() (MarketConfig, error) {
	var cfg MarketConfig
	addr, err := ParseAddress(g.Address)
	if err != nil {
		return cfg, fmt.Errorf("market address: %w", err)
	}
	version, ok := ParseVersion(g.Version)
	if !ok {
		return cfg, fmt.Errorf("market %s: unknown version %q", g.Symbol, g.Version)
	}
	underlying, err := parseOptionalAddress(g.Underlying)
	if err != nil {
		return cfg, fmt.Errorf("market %s underlying: %w", g.Symbol, err)
	}
	admin, err := parseOptionalAddress(g.Admin)
	if err != nil {
		return cfg, fmt.Errorf("market %s admin: %w", g.Symbol, err)
	}
	model, err := g.Model.Build()
	if err != nil {
		return cfg, fmt.Errorf("market %s model: %w", g.Symbol, err)
	}
	reserveFactor, err := parseExpDefault(g.ReserveFactor, fixedpoint.Zero())
	if err != nil {
		return cfg, fmt.Errorf("market %s reserve factor: %w", g.Symbol, err)
	}
	initialRate, err := parseExpDefault(g.InitialExchangeRate, fixedpoint.One())
	if err != nil {
		return cfg, fmt.Errorf("market %s initial exchange rate: %w", g.Symbol, err)
	}
	var rateMax *uint256.Int
	if strings.TrimSpace(g.BorrowRateMax) != "" {
		if rateMax, err = fixedpoint.ParseScaled(g.BorrowRateMax, fixedpoint.Scale); err != nil {
			return cfg, fmt.Errorf("market %s borrow rate max: %w", g.Symbol, err)
		}
	}
	collateralCap, err := parseAmount(g.CollateralCap)
	if err != nil {
		return cfg, fmt.Errorf("market %s collateral cap: %w", g.Symbol, err)
	}
	exclusions := make([]common.Address, 0, len(g.RateExclusions))
	for _, raw := range g.RateExclusions {
		excluded, err := ParseAddress(raw)
		if err != nil {
			return cfg, fmt.Errorf("market %s rate exclusion: %w", g.Symbol, err)
		}
		exclusions = append(exclusions, excluded)
	}
	return MarketConfig{
		Address:             addr,
		Underlying:          underlying,
		Symbol:              g.Symbol,
		Version:             version,
		Admin:               admin,
		Model:               model,
		ReserveFactor:       reserveFactor,
		InitialExchangeRate: initialRate,
		BorrowRateMax:       rateMax,
		FlashloanFeeBps:     g.FlashloanFeeBps,
		CollateralCap:       collateralCap,
		RateExclusions:      exclusions,
	}, nil
}

// Validate checks the genesis for malformed values and duplicate markets
// without touching an engine.
func (g Genesis) Validate() error {
	if _, err := ParseAddress(g.Comptroller.Admin); err != nil {
		return fmt.Errorf("comptroller admin: %w", err)
	}
	if _, err := parseOptionalAddress(g.Comptroller.PauseGuardian); err != nil {
		return fmt.Errorf("comptroller pause guardian: %w", err)
	}
	if _, err := parseExpDefault(g.Comptroller.CloseFactor, DefaultCloseFactor); err != nil {
		return fmt.Errorf("comptroller close factor: %w", err)
	}
	if _, err := parseExpDefault(g.Comptroller.LiquidationIncentive, DefaultLiquidationIncentive); err != nil {
		return fmt.Errorf("comptroller liquidation incentive: %w", err)
	}
	seen := make(map[common.Address]struct{}, len(g.Markets))
	for _, market := range g.Markets {
		cfg, err := market.MarketConfig()
		if err != nil {
			return err
		}
		if _, dup := seen[cfg.Address]; dup {
			return fmt.Errorf("market %s listed twice", cfg.Address.Hex())
		}
		seen[cfg.Address] = struct{}{}
		for name, value := range map[string]string{
			"collateral factor": market.CollateralFactor,
			"price":             market.Price,
		} {
			if _, err := parseExpDefault(value, fixedpoint.Zero()); err != nil {
				return fmt.Errorf("market %s %s: %w", market.Symbol, name, err)
			}
		}
		for name, value := range map[string]string{"supply cap": market.SupplyCap, "borrow cap": market.BorrowCap} {
			if _, err := parseAmount(value); err != nil {
				return fmt.Errorf("market %s %s: %w", market.Symbol, name, err)
			}
		}
	}
	for _, limit := range g.CreditLimits {
		if _, err := ParseAddress(limit.Protocol); err != nil {
			return fmt.Errorf("credit limit protocol: %w", err)
		}
		addr, err := ParseAddress(limit.Market)
		if err != nil {
			return fmt.Errorf("credit limit market: %w", err)
		}
		if _, ok := seen[addr]; !ok {
			return fmt.Errorf("credit limit for unknown market %s", addr.Hex())
		}
		if _, err := parseAmount(limit.Limit); err != nil {
			return fmt.Errorf("credit limit amount: %w", err)
		}
	}
	for _, bal := range g.Balances {
		if _, err := parseOptionalAddress(bal.Asset); err != nil {
			return fmt.Errorf("balance asset: %w", err)
		}
		if _, err := ParseAddress(bal.Holder); err != nil {
			return fmt.Errorf("balance holder: %w", err)
		}
		if _, err := parseAmount(bal.Amount); err != nil {
			return fmt.Errorf("balance amount: %w", err)
		}
	}
	return nil
}

var errAdminMismatch = errors.New("lending engine: genesis admin does not match engine admin")

// Bootstrap applies g to a freshly constructed engine. Risk parameters are
// not persisted, so it runs on every start; token balances are credited only
// when fund is set, which callers do for a brand new ledger.
func Bootstrap(e *Engine, g Genesis, oracle *SimplePriceOracle, fund bool) error {
	if err := g.Validate(); err != nil {
		return err
	}
	admin, _ := ParseAddress(g.Comptroller.Admin)
	if admin != e.comptroller.admin {
		return errAdminMismatch
	}
	c := e.comptroller
	if err := c.SetPriceOracle(admin, oracle); err != nil {
		return err
	}
	if guardian, _ := parseOptionalAddress(g.Comptroller.PauseGuardian); guardian != (common.Address{}) {
		if err := c.SetPauseGuardian(admin, guardian); err != nil {
			return err
		}
	}
	if strings.TrimSpace(g.Comptroller.CloseFactor) != "" {
		factor, _ := fixedpoint.ParseExp(g.Comptroller.CloseFactor)
		if err := c.SetCloseFactor(admin, factor); err != nil {
			return err
		}
	}
	if strings.TrimSpace(g.Comptroller.LiquidationIncentive) != "" {
		incentive, _ := fixedpoint.ParseExp(g.Comptroller.LiquidationIncentive)
		if err := c.SetLiquidationIncentive(admin, incentive); err != nil {
			return err
		}
	}

	for _, market := range g.Markets {
		cfg, _ := market.MarketConfig()
		if cfg.Admin == (common.Address{}) {
			cfg.Admin = admin
		}
		price, _ := parseExpDefault(market.Price, fixedpoint.Zero())
		oracle.SetUnderlyingPrice(cfg.Address, price.Raw())
		if _, err := e.ListMarket(admin, cfg); err != nil {
			return fmt.Errorf("list market %s: %w", market.Symbol, err)
		}
		if c.IsDelisted(cfg.Address) {
			continue
		}
		if cf, _ := parseExpDefault(market.CollateralFactor, fixedpoint.Zero()); !cf.IsZero() {
			if err := c.SetCollateralFactor(admin, cfg.Address, cf); err != nil {
				return fmt.Errorf("market %s collateral factor: %w", market.Symbol, err)
			}
		}
		if supplyCap, _ := parseAmount(market.SupplyCap); !supplyCap.IsZero() {
			if err := c.SetMarketSupplyCaps(admin, []common.Address{cfg.Address}, []*uint256.Int{supplyCap}); err != nil {
				return fmt.Errorf("market %s supply cap: %w", market.Symbol, err)
			}
		}
		if borrowCap, _ := parseAmount(market.BorrowCap); !borrowCap.IsZero() {
			if err := c.SetMarketBorrowCaps(admin, []common.Address{cfg.Address}, []*uint256.Int{borrowCap}); err != nil {
				return fmt.Errorf("market %s borrow cap: %w", market.Symbol, err)
			}
		}
	}

	for _, limit := range g.CreditLimits {
		protocol, _ := ParseAddress(limit.Protocol)
		market, _ := ParseAddress(limit.Market)
		amount, _ := parseAmount(limit.Limit)
		if c.IsDelisted(market) {
			continue
		}
		if err := c.SetCreditLimit(admin, protocol, market, amount); err != nil {
			return fmt.Errorf("credit limit %s: %w", protocol.Hex(), err)
		}
	}

	if !fund {
		return nil
	}
	for _, bal := range g.Balances {
		asset, _ := parseOptionalAddress(bal.Asset)
		holder, _ := ParseAddress(bal.Holder)
		amount, _ := parseAmount(bal.Amount)
		if err := e.FundAccount(asset, holder, amount); err != nil {
			return fmt.Errorf("fund %s: %w", holder.Hex(), err)
		}
	}
	return nil
}
