package state

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/core/events"
	"moneymarket/storage"
)

var (
	marketA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenA  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

func sampleMarket() MarketLedger {
	var m MarketLedger
	m.Cash.SetUint64(1_000)
	m.TotalBorrows.SetUint64(250)
	m.TotalReserves.SetUint64(5)
	m.TotalSupply.SetUint64(50_000)
	m.TotalCollateralTokens.SetUint64(40_000)
	m.BorrowIndex.SetUint64(1_000_000_000_000_000_000)
	m.AccrualBlock = 42
	return m
}

func TestRevertRestoresEveryRecordKind(t *testing.T) {
	s := New(nil)
	s.SetMarket(marketA, sampleMarket())
	s.SetBalance(tokenA, alice, uint256.NewInt(100))
	s.SetMemberships(alice, []common.Address{marketA})
	s.Finalise()

	snap := s.Snapshot()

	updated := sampleMarket()
	updated.Cash.SetUint64(1)
	s.SetMarket(marketA, updated)
	s.SetAccount(marketA, alice, AccountLedger{Tokens: *uint256.NewInt(7)})
	s.SetBalance(tokenA, alice, uint256.NewInt(3))
	s.SetBalance(tokenA, bob, uint256.NewInt(9))
	s.SetAllowance(tokenA, alice, bob, uint256.NewInt(11))
	s.SetMemberships(alice, nil)
	s.AddLog(events.MarketExited{Market: marketA, Account: alice})
	require.Len(t, s.Logs(), 1)

	s.RevertToSnapshot(snap)

	got, ok := s.Market(marketA)
	require.True(t, ok)
	require.Equal(t, sampleMarket(), got)
	require.True(t, s.Account(marketA, alice).IsZero())
	require.Equal(t, uint64(100), s.Balance(tokenA, alice).Uint64())
	require.True(t, s.Balance(tokenA, bob).IsZero())
	require.True(t, s.Allowance(tokenA, alice, bob).IsZero())
	require.Equal(t, []common.Address{marketA}, s.Memberships(alice))
	require.Empty(t, s.Logs())
}

func TestNestedSnapshots(t *testing.T) {
	s := New(nil)
	s.SetBalance(tokenA, alice, uint256.NewInt(1))
	outer := s.Snapshot()
	s.SetBalance(tokenA, alice, uint256.NewInt(2))
	inner := s.Snapshot()
	s.SetBalance(tokenA, alice, uint256.NewInt(3))

	s.RevertToSnapshot(inner)
	require.Equal(t, uint64(2), s.Balance(tokenA, alice).Uint64())
	s.RevertToSnapshot(outer)
	require.Equal(t, uint64(1), s.Balance(tokenA, alice).Uint64())
	require.Panics(t, func() { s.RevertToSnapshot(inner) })
}

func TestGettersReturnCopies(t *testing.T) {
	s := New(nil)
	s.SetBalance(tokenA, alice, uint256.NewInt(5))
	bal := s.Balance(tokenA, alice)
	bal.SetUint64(99)
	require.Equal(t, uint64(5), s.Balance(tokenA, alice).Uint64())

	s.SetMemberships(alice, []common.Address{marketA})
	list := s.Memberships(alice)
	list[0] = bob
	require.Equal(t, []common.Address{marketA}, s.Memberships(alice))
}

func TestFinaliseReturnsLogsAndClearsJournal(t *testing.T) {
	s := New(nil)
	snap := s.Snapshot()
	s.AddLog(events.MarketEntered{Market: marketA, Account: alice})
	logs := s.Finalise()
	require.Len(t, logs, 1)
	require.Empty(t, s.Logs())
	require.Panics(t, func() { s.RevertToSnapshot(snap) })
}

func TestCommitAndReload(t *testing.T) {
	db := storage.NewMemDB()
	s := New(db)
	s.SetMarket(marketA, sampleMarket())
	pos := AccountLedger{}
	pos.Tokens.SetUint64(500)
	pos.CollateralTokens.SetUint64(400)
	pos.BorrowPrincipal.SetUint64(20)
	pos.BorrowIndex.SetUint64(1_000_000_000_000_000_000)
	s.SetAccount(marketA, alice, pos)
	s.SetMemberships(alice, []common.Address{marketA, tokenA})
	s.SetBalance(tokenA, alice, uint256.NewInt(77))
	s.SetAllowance(tokenA, alice, bob, uint256.NewInt(8))
	s.Finalise()
	require.NoError(t, s.Commit())
	require.Equal(t, 5, db.Len())

	reloaded := New(db)
	got, ok := reloaded.Market(marketA)
	require.True(t, ok)
	require.Equal(t, sampleMarket(), got)
	require.Equal(t, pos, reloaded.Account(marketA, alice))
	require.Equal(t, []common.Address{marketA, tokenA}, reloaded.Memberships(alice))
	require.Equal(t, uint64(77), reloaded.Balance(tokenA, alice).Uint64())
	require.Equal(t, uint64(8), reloaded.Allowance(tokenA, alice, bob).Uint64())
	require.NoError(t, reloaded.Error())

	_, ok = reloaded.Market(bob)
	require.False(t, ok)
}

func TestCommitSkipsRevertedCreations(t *testing.T) {
	db := storage.NewMemDB()
	s := New(db)
	snap := s.Snapshot()
	s.SetMarket(marketA, sampleMarket())
	s.RevertToSnapshot(snap)
	require.NoError(t, s.Commit())
	require.Equal(t, 0, db.Len())
}

func TestRevertAfterLazyLoad(t *testing.T) {
	db := storage.NewMemDB()
	seed := New(db)
	seed.SetBalance(tokenA, alice, uint256.NewInt(40))
	require.NoError(t, seed.Commit())

	s := New(db)
	snap := s.Snapshot()
	s.SetBalance(tokenA, alice, uint256.NewInt(1))
	s.RevertToSnapshot(snap)
	require.Equal(t, uint64(40), s.Balance(tokenA, alice).Uint64())
}

func TestDecodeFailureIsRecorded(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put(marketKey(marketA), []byte{0xff, 0x00}))
	s := New(db)
	_, ok := s.Market(marketA)
	require.False(t, ok)
	require.Error(t, s.Error())
	require.Error(t, s.Commit())
}

func TestBlockNumberRoundTripLevelDB(t *testing.T) {
	db, err := storage.NewLevelDB(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	defer db.Close()

	_, ok, err := LoadBlockNumber(db)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, StoreBlockNumber(db, 1234))
	number, ok, err := LoadBlockNumber(db)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1234), number)
}
