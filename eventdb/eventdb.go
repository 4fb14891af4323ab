// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"database/sql"
	"math/big"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/ledger"
	"github.com/lockforge/lockledger/lock"
)

type RangeType string

const (
	Block RangeType = "Block"
	Time  RangeType = "Time"
)

type OrderType string

const (
	ASC  OrderType = "ASC"
	DESC OrderType = "DESC"
)

type Range struct {
	Unit RangeType `json:"unit"`
	From uint64    `json:"from"`
	To   uint64    `json:"to"`
}

type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Filter narrows a query over the event history.
type Filter struct {
	Account *lock.Address `json:"account"`
	Name    string        `json:"name"` // empty matches all event names
	Order   OrderType     `json:"order"`
	Range   *Range
	Options *Options
}

// Record is one flattened ledger event as stored in the database.
type Record struct {
	BlockNumber  uint32        `json:"blockNumber"`
	BlockTime    uint64        `json:"blockTime"`
	Index        uint32        `json:"index"`
	Name         string        `json:"name"`
	Account      lock.Address  `json:"account"`
	Counterparty *lock.Address `json:"counterparty,omitempty"`
	DepositID    *uint32       `json:"depositID,omitempty"`
	Amount       *big.Int      `json:"amount,omitempty"`
	Tier         string        `json:"tier,omitempty"`
}

// EventDB stores the ledger's emitted facts in sqlite for later filtering.
type EventDB struct {
	path          string
	db            *sql.DB
	sqliteVersion string
}

// New creates or opens an event db at the given path.
func New(path string) (*EventDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(eventTableSchema); err != nil {
		db.Close()
		return nil, err
	}
	s, _, _ := sqlite3.Version()
	return &EventDB{
		path:          path,
		db:            db,
		sqliteVersion: s,
	}, nil
}

// NewMem creates an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// flatten converts a typed ledger event into a storable record.
func flatten(ev ledger.Event) Record {
	rec := Record{Name: ev.Name()}
	switch e := ev.(type) {
	case ledger.DepositMade:
		id := e.DepositID
		rec.Account, rec.DepositID, rec.Amount, rec.Tier = e.Account, &id, e.Amount, e.Tier.String()
	case ledger.WithdrawalMade:
		id := e.DepositID
		rec.Account, rec.DepositID, rec.Amount, rec.Tier = e.Account, &id, e.Amount, e.Tier.String()
	case ledger.DelegatePowerChanged:
		delegate := e.Delegate
		rec.Account, rec.Counterparty, rec.Amount = e.Account, &delegate, e.Delta
	case ledger.RewardsDurationUpdated:
		rec.Amount = new(big.Int).SetUint64(e.Duration)
	case ledger.RewardAdded:
		rec.Amount = e.Amount
	case ledger.RewardPaid:
		rec.Account, rec.Amount = e.Account, e.Amount
	case ledger.TokenRecovered:
		token := e.Token
		rec.Counterparty, rec.Amount = &token, e.Amount
	case ledger.PausedSet:
		if e.Paused {
			rec.Amount = big.NewInt(1)
		} else {
			rec.Amount = big.NewInt(0)
		}
	}
	return rec
}

// Insert stores the events of one processed block.
func (db *EventDB) Insert(blockNumber uint32, blockTime uint64, events []ledger.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	for i, ev := range events {
		rec := flatten(ev)

		var depositID any
		if rec.DepositID != nil {
			depositID = *rec.DepositID
		}
		var counterparty any
		if rec.Counterparty != nil {
			counterparty = rec.Counterparty.Bytes()
		}
		var amount any
		if rec.Amount != nil {
			amount = rec.Amount.String()
		}

		if _, err = tx.Exec(
			"INSERT INTO event(blockNumber, blockTime, eventIndex, name, account, counterparty, depositID, amount, tier) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);",
			blockNumber,
			blockTime,
			i,
			rec.Name,
			rec.Account.Bytes(),
			counterparty,
			depositID,
			amount,
			rec.Tier,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Filter returns stored records matching the filter, in event order.
func (db *EventDB) Filter(filter *Filter) ([]*Record, error) {
	if filter == nil {
		return db.query("SELECT * FROM event ORDER BY blockNumber ASC, eventIndex ASC")
	}
	var args []any
	stmt := "SELECT * FROM event WHERE 1"
	if filter.Range != nil {
		condition := "blockNumber"
		if filter.Range.Unit == Time {
			condition = "blockTime"
		}
		args = append(args, filter.Range.From)
		stmt += " AND " + condition + " >= ? "
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND " + condition + " <= ? "
		}
	}
	if filter.Account != nil {
		args = append(args, filter.Account.Bytes())
		stmt += " AND account = ? "
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		stmt += " AND name = ? "
	}

	if filter.Order == DESC {
		stmt += " ORDER BY blockNumber DESC, eventIndex DESC "
	} else {
		stmt += " ORDER BY blockNumber ASC, eventIndex ASC "
	}

	if filter.Options != nil {
		stmt += " limit ?, ? "
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.query(stmt, args...)
}

func (db *EventDB) query(stmt string, args ...any) ([]*Record, error) {
	rows, err := db.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			blockNumber  uint32
			blockTime    uint64
			index        uint32
			name         string
			account      []byte
			counterparty []byte
			depositID    sql.NullInt64
			amount       sql.NullString
			tier         string
		)
		if err := rows.Scan(
			&blockNumber,
			&blockTime,
			&index,
			&name,
			&account,
			&counterparty,
			&depositID,
			&amount,
			&tier,
		); err != nil {
			return nil, err
		}
		rec := &Record{
			BlockNumber: blockNumber,
			BlockTime:   blockTime,
			Index:       index,
			Name:        name,
			Account:     lock.BytesToAddress(account),
			Tier:        tier,
		}
		if len(counterparty) > 0 {
			addr := lock.BytesToAddress(counterparty)
			rec.Counterparty = &addr
		}
		if depositID.Valid {
			id := uint32(depositID.Int64)
			rec.DepositID = &id
		}
		if amount.Valid {
			value, ok := new(big.Int).SetString(amount.String, 10)
			if !ok {
				return nil, errors.Errorf("malformed amount %q", amount.String)
			}
			rec.Amount = value
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Path returns the db's file path.
func (db *EventDB) Path() string {
	return db.path
}

// Close closes the db.
func (db *EventDB) Close() {
	db.db.Close()
}
