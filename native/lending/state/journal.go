package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type journalEntry interface {
	undo(*StateDB)
}

type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) length() int {
	return len(j.entries)
}

// revert undoes every entry recorded after snapshot, newest first.
func (j *journal) revert(s *StateDB, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].undo(s)
	}
	j.entries = j.entries[:snapshot]
}

type (
	marketChange struct {
		market  common.Address
		prev    MarketLedger
		existed bool
	}
	accountChange struct {
		key     accountKey
		prev    AccountLedger
		existed bool
	}
	membershipChange struct {
		account common.Address
		prev    []common.Address
		existed bool
	}
	balanceChange struct {
		key     balanceKey
		prev    uint256.Int
		existed bool
	}
	allowanceChange struct {
		key     allowanceKey
		prev    uint256.Int
		existed bool
	}
	addLogChange struct{}
)

func (ch marketChange) undo(s *StateDB) {
	if !ch.existed {
		delete(s.markets, ch.market)
		return
	}
	prev := ch.prev
	s.markets[ch.market] = &prev
}

func (ch accountChange) undo(s *StateDB) {
	if !ch.existed {
		delete(s.accounts, ch.key)
		return
	}
	prev := ch.prev
	s.accounts[ch.key] = &prev
}

func (ch membershipChange) undo(s *StateDB) {
	if !ch.existed {
		delete(s.memberships, ch.account)
		return
	}
	s.memberships[ch.account] = ch.prev
}

func (ch balanceChange) undo(s *StateDB) {
	if !ch.existed {
		delete(s.balances, ch.key)
		return
	}
	prev := ch.prev
	s.balances[ch.key] = &prev
}

func (ch allowanceChange) undo(s *StateDB) {
	if !ch.existed {
		delete(s.allowances, ch.key)
		return
	}
	prev := ch.prev
	s.allowances[ch.key] = &prev
}

func (ch addLogChange) undo(s *StateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}
