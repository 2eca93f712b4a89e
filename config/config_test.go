package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	nativecommon "moneymarket/native/common"
)

const sampleConfig = `NetworkName = "testnet"

[pauses]
Borrow = true
Redeem = true

[quota]
MaxRequestsPerEpoch = 30
MaxValuePerEpoch = 1000000
EpochSeconds = 3600

[lending.comptroller]
Admin = "0x0000000000000000000000000000000000000001"
PauseGuardian = "0x0000000000000000000000000000000000000002"
CloseFactor = "0.5"
LiquidationIncentive = "1.08"

[[lending.markets]]
Address = "0x0000000000000000000000000000000000000030"
Underlying = "0x0000000000000000000000000000000000000020"
Symbol = "cUSD"
ReserveFactor = "0.1"
CollateralFactor = "0.8"
Price = "1"
SupplyCap = "1000000000000000000000000"

[lending.markets.model]
Kind = "jump_rate"
BaseRatePerYear = "0.02"
MultiplierPerYear = "0.1"
JumpMultiplierPerYear = "2"
Kink = "0.8"

[[lending.markets]]
Address = "0x0000000000000000000000000000000000000032"
Symbol = "cNative"
Version = "wrapped_native"
CollateralFactor = "0.75"
CollateralCap = "500000000000000000000"
Price = "2000"

[lending.markets.model]
Kind = "triple_slope"
MultiplierPerYear = "0.1"
JumpMultiplierPerYear = "1"
Kink = "0.7"
Kink2 = "0.9"
Roof = "1"

[[lending.credit_limits]]
Protocol = "0x0000000000000000000000000000000000000013"
Market = "0x0000000000000000000000000000000000000030"
Limit = "100000000000000000000"

[[lending.balances]]
Asset = "0x0000000000000000000000000000000000000020"
Holder = "0x0000000000000000000000000000000000000010"
Amount = "5000000000000000000000"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesLendingGenesis(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "testnet", cfg.NetworkName)
	require.Len(t, cfg.Lending.Markets, 2)
	require.Equal(t, "cUSD", cfg.Lending.Markets[0].Symbol)
	require.Equal(t, "jump_rate", cfg.Lending.Markets[0].Model.Kind)
	require.Equal(t, "wrapped_native", cfg.Lending.Markets[1].Version)
	require.Equal(t, "1", cfg.Lending.Markets[1].Model.Roof)
	require.Len(t, cfg.Lending.CreditLimits, 1)
	require.Len(t, cfg.Lending.Balances, 1)
	require.Empty(t, cfg.AdminKeyPath, "an explicit admin needs no key file")

	limits := cfg.Quota.Limits()
	require.Equal(t, uint32(30), limits.MaxRequestsPerEpoch)
	require.True(t, limits.Enabled())
}

func TestPausesView(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	view := cfg.Pauses.View()
	require.True(t, view.IsPaused("lending.borrow"))
	require.True(t, view.IsPaused("lending.redeem_underlying"))
	require.False(t, view.IsPaused("lending"))
	require.NoError(t, nativecommon.Guard(view, "lending.mint"))

	all := Pauses{Lending: true}.View()
	require.ErrorIs(t, nativecommon.Guard(all, "lending"), nativecommon.ErrModulePaused)
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "moneymarket-local", cfg.NetworkName)
	require.Equal(t, filepath.Join(dir, "nested", "admin.key"), cfg.AdminKeyPath)

	key, err := crypto.LoadECDSA(cfg.AdminKeyPath)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), cfg.Lending.Comptroller.Admin)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Lending.Comptroller.Admin, reloaded.Lending.Comptroller.Admin)
	require.Equal(t, "1.08", reloaded.Lending.Comptroller.LiquidationIncentive)
}

func TestLoadDerivesAdminFromKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "operator.key")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, crypto.SaveECDSA(keyPath, key))

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("AdminKeyPath = \""+filepath.ToSlash(keyPath)+"\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), cfg.Lending.Comptroller.Admin)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, sampleConfig+"\nValidatorKey = \"abc\"\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ValidatorKey")
}

func TestLoadRejectsInvalidGenesis(t *testing.T) {
	broken := strings.Replace(sampleConfig, `CollateralCap = "500000000000000000000"`, `CollateralCap = "lots"`, 1)
	_, err := Load(writeConfig(t, broken))
	require.Error(t, err)
	require.Contains(t, err.Error(), "collateral cap")
}

func TestValidateConfigQuotaEpoch(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	cfg.Quota.EpochSeconds = 10
	require.Error(t, ValidateConfig(*cfg))
	cfg.Quota = Quota{}
	require.NoError(t, ValidateConfig(*cfg))
}
