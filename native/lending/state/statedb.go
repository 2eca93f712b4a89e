package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/storage"
)

type revision struct {
	id           int
	journalIndex int
}

// StateDB caches ledger records loaded from the backing database and journals
// every mutation. It is not safe for concurrent use.
type StateDB struct {
	db storage.Database

	markets     map[common.Address]*MarketLedger
	accounts    map[accountKey]*AccountLedger
	memberships map[common.Address][]common.Address
	balances    map[balanceKey]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int

	dirtyMarkets     map[common.Address]struct{}
	dirtyAccounts    map[accountKey]struct{}
	dirtyMemberships map[common.Address]struct{}
	dirtyBalances    map[balanceKey]struct{}
	dirtyAllowances  map[allowanceKey]struct{}

	logs []events.Event

	journal        *journal
	validRevisions []revision
	nextRevisionID int

	// dbErr records the first failure to load a record. Loading happens from
	// getters that cannot return an error, so callers check Error afterwards.
	dbErr error
}

// New creates a state backed by db. A nil db keeps everything in memory.
func New(db storage.Database) *StateDB {
	return &StateDB{
		db:               db,
		markets:          make(map[common.Address]*MarketLedger),
		accounts:         make(map[accountKey]*AccountLedger),
		memberships:      make(map[common.Address][]common.Address),
		balances:         make(map[balanceKey]*uint256.Int),
		allowances:       make(map[allowanceKey]*uint256.Int),
		dirtyMarkets:     make(map[common.Address]struct{}),
		dirtyAccounts:    make(map[accountKey]struct{}),
		dirtyMemberships: make(map[common.Address]struct{}),
		dirtyBalances:    make(map[balanceKey]struct{}),
		dirtyAllowances:  make(map[allowanceKey]struct{}),
		journal:          new(journal),
	}
}

func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first load or decode failure observed by the state.
func (s *StateDB) Error() error {
	return s.dbErr
}

// Market returns a copy of the market ledger and whether it exists.
func (s *StateDB) Market(market common.Address) (MarketLedger, bool) {
	ledger := s.getMarket(market)
	if ledger == nil {
		return MarketLedger{}, false
	}
	return *ledger, true
}

// SetMarket replaces the market ledger.
func (s *StateDB) SetMarket(market common.Address, ledger MarketLedger) {
	prev := s.getMarket(market)
	change := marketChange{market: market}
	if prev != nil {
		change.prev, change.existed = *prev, true
	}
	s.journal.append(change)
	s.markets[market] = &ledger
	s.dirtyMarkets[market] = struct{}{}
}

func (s *StateDB) getMarket(market common.Address) *MarketLedger {
	if ledger, ok := s.markets[market]; ok {
		return ledger
	}
	var rec marketRecord
	if !s.load(marketKey(market), &rec) {
		return nil
	}
	ledger := rec.ledger()
	s.markets[market] = &ledger
	return &ledger
}

// Account returns a copy of holder's position in market. Unknown positions
// are zero.
func (s *StateDB) Account(market, holder common.Address) AccountLedger {
	if ledger := s.getAccount(accountKey{market: market, holder: holder}); ledger != nil {
		return *ledger
	}
	return AccountLedger{}
}

// SetAccount replaces holder's position in market.
func (s *StateDB) SetAccount(market, holder common.Address, ledger AccountLedger) {
	key := accountKey{market: market, holder: holder}
	prev := s.getAccount(key)
	change := accountChange{key: key}
	if prev != nil {
		change.prev, change.existed = *prev, true
	}
	s.journal.append(change)
	s.accounts[key] = &ledger
	s.dirtyAccounts[key] = struct{}{}
}

func (s *StateDB) getAccount(key accountKey) *AccountLedger {
	if ledger, ok := s.accounts[key]; ok {
		return ledger
	}
	var rec accountRecord
	if !s.load(accountStorageKey(key), &rec) {
		return nil
	}
	ledger := rec.ledger()
	s.accounts[key] = &ledger
	return &ledger
}

// Memberships returns the markets account has entered, in entry order.
func (s *StateDB) Memberships(account common.Address) []common.Address {
	list, _ := s.getMemberships(account)
	return append([]common.Address(nil), list...)
}

// SetMemberships replaces the entered-market list of account.
func (s *StateDB) SetMemberships(account common.Address, markets []common.Address) {
	prev, existed := s.getMemberships(account)
	s.journal.append(membershipChange{account: account, prev: prev, existed: existed})
	s.memberships[account] = append([]common.Address(nil), markets...)
	s.dirtyMemberships[account] = struct{}{}
}

func (s *StateDB) getMemberships(account common.Address) ([]common.Address, bool) {
	if list, ok := s.memberships[account]; ok {
		return list, true
	}
	var list []common.Address
	if !s.load(membershipKey(account), &list) {
		return nil, false
	}
	s.memberships[account] = list
	return list, true
}

// Balance returns holder's balance of asset. NativeAsset addresses the native
// currency.
func (s *StateDB) Balance(asset, holder common.Address) *uint256.Int {
	if bal := s.getBalance(balanceKey{asset: asset, holder: holder}); bal != nil {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// SetBalance replaces holder's balance of asset.
func (s *StateDB) SetBalance(asset, holder common.Address, amount *uint256.Int) {
	key := balanceKey{asset: asset, holder: holder}
	prev := s.getBalance(key)
	change := balanceChange{key: key}
	if prev != nil {
		change.prev, change.existed = *prev, true
	}
	s.journal.append(change)
	s.balances[key] = new(uint256.Int).Set(amount)
	s.dirtyBalances[key] = struct{}{}
}

func (s *StateDB) getBalance(key balanceKey) *uint256.Int {
	if bal, ok := s.balances[key]; ok {
		return bal
	}
	var rec amountRecord
	if !s.load(balanceStorageKey(key), &rec) {
		return nil
	}
	bal := rec.value()
	s.balances[key] = bal
	return bal
}

// Allowance returns how much of owner's asset spender may move.
func (s *StateDB) Allowance(asset, owner, spender common.Address) *uint256.Int {
	if amt := s.getAllowance(allowanceKey{asset: asset, owner: owner, spender: spender}); amt != nil {
		return new(uint256.Int).Set(amt)
	}
	return new(uint256.Int)
}

// SetAllowance replaces the allowance of spender over owner's asset.
func (s *StateDB) SetAllowance(asset, owner, spender common.Address, amount *uint256.Int) {
	key := allowanceKey{asset: asset, owner: owner, spender: spender}
	prev := s.getAllowance(key)
	change := allowanceChange{key: key}
	if prev != nil {
		change.prev, change.existed = *prev, true
	}
	s.journal.append(change)
	s.allowances[key] = new(uint256.Int).Set(amount)
	s.dirtyAllowances[key] = struct{}{}
}

func (s *StateDB) getAllowance(key allowanceKey) *uint256.Int {
	if amt, ok := s.allowances[key]; ok {
		return amt
	}
	var rec amountRecord
	if !s.load(allowanceStorageKey(key), &rec) {
		return nil
	}
	amt := rec.value()
	s.allowances[key] = amt
	return amt
}

// AddLog buffers an event until the enclosing operation is finalised.
func (s *StateDB) AddLog(evt events.Event) {
	s.journal.append(addLogChange{})
	s.logs = append(s.logs, evt)
}

// Logs returns the events buffered since the last Finalise.
func (s *StateDB) Logs() []events.Event {
	return append([]events.Event(nil), s.logs...)
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id: id, journalIndex: s.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex
	s.journal.revert(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

// Finalise drops the journal, making the current state the new baseline, and
// hands back the buffered events.
func (s *StateDB) Finalise() []events.Event {
	logs := s.logs
	s.logs = nil
	s.journal = new(journal)
	s.validRevisions = s.validRevisions[:0]
	return logs
}

// Commit writes every record touched since the previous commit to the backing
// database in one batch.
func (s *StateDB) Commit() error {
	if s.dbErr != nil {
		return s.dbErr
	}
	if s.db == nil {
		s.resetDirty()
		return nil
	}
	batch := s.db.NewBatch()
	for market := range s.dirtyMarkets {
		if ledger, ok := s.markets[market]; ok {
			if err := putRecord(batch, marketKey(market), newMarketRecord(ledger)); err != nil {
				return err
			}
		}
	}
	for key := range s.dirtyAccounts {
		if ledger, ok := s.accounts[key]; ok {
			if err := putRecord(batch, accountStorageKey(key), newAccountRecord(ledger)); err != nil {
				return err
			}
		}
	}
	for account := range s.dirtyMemberships {
		if list, ok := s.memberships[account]; ok {
			if err := putRecord(batch, membershipKey(account), list); err != nil {
				return err
			}
		}
	}
	for key := range s.dirtyBalances {
		if bal, ok := s.balances[key]; ok {
			if err := putRecord(batch, balanceStorageKey(key), newAmountRecord(bal)); err != nil {
				return err
			}
		}
	}
	for key := range s.dirtyAllowances {
		if amt, ok := s.allowances[key]; ok {
			if err := putRecord(batch, allowanceStorageKey(key), newAmountRecord(amt)); err != nil {
				return err
			}
		}
	}
	if batch.Len() > 0 {
		if err := batch.Write(); err != nil {
			return fmt.Errorf("commit lending state: %w", err)
		}
	}
	s.resetDirty()
	return nil
}

func (s *StateDB) resetDirty() {
	s.dirtyMarkets = make(map[common.Address]struct{})
	s.dirtyAccounts = make(map[accountKey]struct{})
	s.dirtyMemberships = make(map[common.Address]struct{})
	s.dirtyBalances = make(map[balanceKey]struct{})
	s.dirtyAllowances = make(map[allowanceKey]struct{})
}

// load decodes the record stored under key into out. It reports false when
// there is no backing database, the key is absent or decoding failed.
func (s *StateDB) load(key []byte, out interface{}) bool {
	if s.db == nil {
		return false
	}
	raw, err := s.db.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.setError(fmt.Errorf("load lending record %x: %w", key, err))
		}
		return false
	}
	if err := decodeRecord(raw, out); err != nil {
		s.setError(fmt.Errorf("decode lending record %x: %w", key, err))
		return false
	}
	return true
}
