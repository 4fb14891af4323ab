// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/api/utils"
	"github.com/lockforge/lockledger/eventdb"
	"github.com/lockforge/lockledger/ledger"
	"github.com/lockforge/lockledger/lock"
)

// LedgerAPI exposes the ledger's read entry points and the event history over
// HTTP. All endpoints are read-only; state changes happen elsewhere.
type LedgerAPI struct {
	ledger  *ledger.Ledger
	eventDB *eventdb.EventDB
	now     func() uint64
}

func NewLedgerAPI(led *ledger.Ledger, eventDB *eventdb.EventDB, now func() uint64) *LedgerAPI {
	return &LedgerAPI{
		ledger:  led,
		eventDB: eventDB,
		now:     now,
	}
}

func (a *LedgerAPI) handleGetSupply(w http.ResponseWriter, _ *http.Request) error {
	total, err := a.ledger.TotalSupply()
	if err != nil {
		return err
	}
	duration, err := a.ledger.RewardsDuration()
	if err != nil {
		return err
	}
	finish, err := a.ledger.PeriodFinish()
	if err != nil {
		return err
	}
	forDuration, err := a.ledger.RewardForDuration()
	if err != nil {
		return err
	}
	paused, err := a.ledger.Paused()
	if err != nil {
		return err
	}
	owner, err := a.ledger.Owner()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Supply{
		TotalSupply:       toHexOrDecimal(total),
		RewardsDuration:   duration,
		PeriodFinish:      finish,
		RewardForDuration: toHexOrDecimal(forDuration),
		Paused:            paused,
		Owner:             owner,
	})
}

func (a *LedgerAPI) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}

	total, err := a.ledger.TotalUserDeposits(addr)
	if err != nil {
		return err
	}
	power, err := a.ledger.CurrentPower(addr)
	if err != nil {
		return err
	}
	earned, err := a.ledger.Earned(addr, a.now())
	if err != nil {
		return err
	}
	del, err := a.ledger.GetDelegation(addr)
	if err != nil {
		return err
	}

	account := &Account{
		TotalDeposited: toHexOrDecimal(total),
		Power:          toHexOrDecimal(power),
		Earned:         toHexOrDecimal(earned),
	}
	if !del.Delegate.IsZero() {
		delegate := del.Delegate
		account.Delegate = &delegate
	}
	return utils.WriteJSON(w, account)
}

func (a *LedgerAPI) handleGetDeposits(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	ids, err := a.ledger.ActiveDeposits(addr)
	if err != nil {
		return err
	}

	list := make([]*Deposit, 0, len(ids))
	for _, id := range ids {
		d, err := a.getDeposit(addr, id)
		if err != nil {
			return err
		}
		list = append(list, d)
	}
	return utils.WriteJSON(w, list)
}

func (a *LedgerAPI) handleGetDeposit(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	id64, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "id"))
	}
	id := uint32(id64)

	last, ok, err := a.ledger.LastDepositID(addr)
	if err != nil {
		return err
	}
	if !ok || id > last {
		return utils.NotFound(errors.New("no such deposit"))
	}

	d, err := a.getDeposit(addr, id)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, d)
}

func (a *LedgerAPI) getDeposit(addr lock.Address, id uint32) (*Deposit, error) {
	d, err := a.ledger.GetDeposit(addr, id)
	if err != nil {
		return nil, err
	}
	bonus, err := a.ledger.DepositBonus(addr, id)
	if err != nil {
		return nil, err
	}
	return &Deposit{
		ID:         id,
		Amount:     toHexOrDecimal(d.Amount),
		Tier:       d.Tier.String(),
		UnlockTime: d.UnlockTime,
		Bonus:      toHexOrDecimal(bonus),
	}, nil
}

func (a *LedgerAPI) handleGetPower(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}

	result := &Power{}
	if raw := req.URL.Query().Get("ordinal"); raw != "" {
		ordinal64, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "ordinal"))
		}
		ordinal := uint32(ordinal64)
		power, err := a.ledger.VotePower(addr, ordinal)
		if err != nil {
			return err
		}
		result.Ordinal = &ordinal
		result.Power = toHexOrDecimal(power)
	} else {
		power, err := a.ledger.CurrentPower(addr)
		if err != nil {
			return err
		}
		result.Power = toHexOrDecimal(power)
	}
	return utils.WriteJSON(w, result)
}

func (a *LedgerAPI) handleGetEvents(w http.ResponseWriter, req *http.Request) error {
	filter := &eventdb.Filter{}
	query := req.URL.Query()

	if raw := query.Get("account"); raw != "" {
		addr, err := lock.ParseAddress(raw)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "account"))
		}
		filter.Account = addr
	}
	filter.Name = query.Get("name")
	if query.Get("order") == "desc" {
		filter.Order = eventdb.DESC
	}

	if raw := query.Get("from"); raw != "" {
		from, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "from"))
		}
		// an absent upper bound means unbounded
		r := &eventdb.Range{Unit: eventdb.Block, From: from, To: math.MaxUint64}
		if query.Get("unit") == "time" {
			r.Unit = eventdb.Time
		}
		if rawTo := query.Get("to"); rawTo != "" {
			if r.To, err = strconv.ParseUint(rawTo, 10, 64); err != nil {
				return utils.BadRequest(errors.WithMessage(err, "to"))
			}
		}
		filter.Range = r
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "limit"))
		}
		options := &eventdb.Options{Limit: limit}
		if rawOffset := query.Get("offset"); rawOffset != "" {
			if options.Offset, err = strconv.ParseUint(rawOffset, 10, 64); err != nil {
				return utils.BadRequest(errors.WithMessage(err, "offset"))
			}
		}
		filter.Options = options
	}

	records, err := a.eventDB.Filter(filter)
	if err != nil {
		return err
	}
	if records == nil {
		records = []*eventdb.Record{}
	}
	return utils.WriteJSON(w, records)
}

func parseAddress(req *http.Request) (lock.Address, error) {
	addr, err := lock.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return lock.Address{}, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return *addr, nil
}

// Mount attaches the API's routes under pathPrefix of root.
func (a *LedgerAPI) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/supply").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetSupply))
	sub.Path("/accounts/{address}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetAccount))
	sub.Path("/accounts/{address}/deposits").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetDeposits))
	sub.Path("/accounts/{address}/deposits/{id}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetDeposit))
	sub.Path("/accounts/{address}/power").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetPower))
	sub.Path("/events").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetEvents))
}
