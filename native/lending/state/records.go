package state

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"moneymarket/storage"
)

var (
	marketPrefix     = []byte("lending/market/")
	accountPrefix    = []byte("lending/account/")
	membershipPrefix = []byte("lending/membership/")
	balancePrefix    = []byte("lending/balance/")
	allowancePrefix  = []byte("lending/allowance/")
)

func marketKey(market common.Address) []byte {
	return crypto.Keccak256(marketPrefix, market.Bytes())
}

func accountStorageKey(key accountKey) []byte {
	return crypto.Keccak256(accountPrefix, key.market.Bytes(), key.holder.Bytes())
}

func membershipKey(account common.Address) []byte {
	return crypto.Keccak256(membershipPrefix, account.Bytes())
}

func balanceStorageKey(key balanceKey) []byte {
	return crypto.Keccak256(balancePrefix, key.asset.Bytes(), key.holder.Bytes())
}

func allowanceStorageKey(key allowanceKey) []byte {
	return crypto.Keccak256(allowancePrefix, key.asset.Bytes(), key.owner.Bytes(), key.spender.Bytes())
}

// Persisted records use *big.Int so the RLP layout stays independent of the
// in-memory integer type.
type marketRecord struct {
	Cash                  *big.Int
	TotalBorrows          *big.Int
	TotalReserves         *big.Int
	TotalSupply           *big.Int
	TotalCollateralTokens *big.Int
	BorrowIndex           *big.Int
	AccrualBlock          uint64
	Delisted              bool
}

func newMarketRecord(m *MarketLedger) *marketRecord {
	return &marketRecord{
		Cash:                  m.Cash.ToBig(),
		TotalBorrows:          m.TotalBorrows.ToBig(),
		TotalReserves:         m.TotalReserves.ToBig(),
		TotalSupply:           m.TotalSupply.ToBig(),
		TotalCollateralTokens: m.TotalCollateralTokens.ToBig(),
		BorrowIndex:           m.BorrowIndex.ToBig(),
		AccrualBlock:          m.AccrualBlock,
		Delisted:              m.Delisted,
	}
}

func (r *marketRecord) ledger() MarketLedger {
	var m MarketLedger
	setBig(&m.Cash, r.Cash)
	setBig(&m.TotalBorrows, r.TotalBorrows)
	setBig(&m.TotalReserves, r.TotalReserves)
	setBig(&m.TotalSupply, r.TotalSupply)
	setBig(&m.TotalCollateralTokens, r.TotalCollateralTokens)
	setBig(&m.BorrowIndex, r.BorrowIndex)
	m.AccrualBlock = r.AccrualBlock
	m.Delisted = r.Delisted
	return m
}

type accountRecord struct {
	Tokens           *big.Int
	CollateralTokens *big.Int
	BorrowPrincipal  *big.Int
	BorrowIndex      *big.Int
}

func newAccountRecord(a *AccountLedger) *accountRecord {
	return &accountRecord{
		Tokens:           a.Tokens.ToBig(),
		CollateralTokens: a.CollateralTokens.ToBig(),
		BorrowPrincipal:  a.BorrowPrincipal.ToBig(),
		BorrowIndex:      a.BorrowIndex.ToBig(),
	}
}

func (r *accountRecord) ledger() AccountLedger {
	var a AccountLedger
	setBig(&a.Tokens, r.Tokens)
	setBig(&a.CollateralTokens, r.CollateralTokens)
	setBig(&a.BorrowPrincipal, r.BorrowPrincipal)
	setBig(&a.BorrowIndex, r.BorrowIndex)
	return a
}

type amountRecord struct {
	Amount *big.Int
}

func newAmountRecord(v *uint256.Int) *amountRecord {
	return &amountRecord{Amount: v.ToBig()}
}

func (r *amountRecord) value() *uint256.Int {
	v := new(uint256.Int)
	setBig(v, r.Amount)
	return v
}

func setBig(dst *uint256.Int, src *big.Int) {
	if src == nil {
		dst.Clear()
		return
	}
	// Values above 2^256 cannot be produced by the ledger; FromBig truncates.
	dst.SetFromBig(src)
}

func putRecord(batch storage.Batch, key []byte, rec interface{}) error {
	encoded, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return err
	}
	batch.Put(key, encoded)
	return nil
}

func decodeRecord(raw []byte, out interface{}) error {
	return rlp.DecodeBytes(raw, out)
}

// blockKey is used by the daemon to persist the last processed block.
var blockKey = crypto.Keccak256([]byte("lending/block"))

// LoadBlockNumber returns the block number stored by StoreBlockNumber.
func LoadBlockNumber(db storage.Database) (uint64, bool, error) {
	raw, err := db.Get(blockKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// StoreBlockNumber records the engine block number.
func StoreBlockNumber(db storage.Database, number uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], number)
	return db.Put(blockKey, buf[:])
}
