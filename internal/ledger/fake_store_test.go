package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"iuran/internal/core"
)

// fakeStore is an in-memory implementation of the ledger's store
// interfaces with the same write semantics as the SQLite repository:
// provision is insert-if-absent, settle is an upsert that preserves
// existing amounts and applies the newer-settle-wins guard, release is
// conditional on the expected transaction id.
type fakeStore struct {
	mu            sync.Mutex
	houses        map[string]core.House
	obligations   map[string]map[core.MonthKey]core.Obligation
	monthStatuses map[string][]core.MonthStatus
	txs           map[string]core.Transaction

	// injected failures
	settleErr       error
	provisionErrFor string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		houses:        make(map[string]core.House),
		obligations:   make(map[string]map[core.MonthKey]core.Obligation),
		monthStatuses: make(map[string][]core.MonthStatus),
		txs:           make(map[string]core.Transaction),
	}
}

func (f *fakeStore) addHouse(h core.House) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.houses[h.HouseID] = h
}

func (f *fakeStore) obligation(houseID string, month core.MonthKey) (core.Obligation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ob, ok := f.obligations[houseID][month]
	return ob, ok
}

func (f *fakeStore) obligationCount(houseID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.obligations[houseID])
}

func (f *fakeStore) GetHouse(_ context.Context, houseID string) (*core.House, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.houses[houseID]
	if !ok {
		return nil, fmt.Errorf("house %q: %w", houseID, core.ErrNotFound)
	}
	return &h, nil
}

func (f *fakeStore) ListHouses(_ context.Context) ([]core.House, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.House, 0, len(f.houses))
	for _, h := range f.houses {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HouseID < out[j].HouseID })
	return out, nil
}

func (f *fakeStore) ProvisionObligation(_ context.Context, houseID string, ob core.Obligation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if houseID == f.provisionErrFor {
		return false, fmt.Errorf("%w: injected", core.ErrStorageUnavailable)
	}
	months, ok := f.obligations[houseID]
	if !ok {
		months = make(map[core.MonthKey]core.Obligation)
		f.obligations[houseID] = months
	}
	if _, exists := months[ob.Month]; exists {
		return false, nil
	}
	months[ob.Month] = ob
	return true, nil
}

func (f *fakeStore) SettleObligation(_ context.Context, houseID string, ob core.Obligation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settleErr != nil {
		return f.settleErr
	}
	months, ok := f.obligations[houseID]
	if !ok {
		months = make(map[core.MonthKey]core.Obligation)
		f.obligations[houseID] = months
	}
	existing, exists := months[ob.Month]
	if !exists {
		months[ob.Month] = ob
		return nil
	}
	if existing.SettledAt != nil && ob.SettledAt != nil && ob.SettledAt.Before(*existing.SettledAt) {
		return nil
	}
	existing.Status = ob.Status
	existing.TransactionID = ob.TransactionID
	existing.SettledAt = ob.SettledAt
	months[ob.Month] = existing
	return nil
}

func (f *fakeStore) ReleaseObligation(_ context.Context, houseID string, month core.MonthKey, transactionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	months := f.obligations[houseID]
	ob, ok := months[month]
	if !ok || ob.TransactionID != transactionID {
		return false, nil
	}
	ob.Status = core.ObligationUnpaid
	ob.TransactionID = ""
	ob.SettledAt = nil
	months[month] = ob
	return true, nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, tx core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[tx.ID] = tx
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id string) (*core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	return &tx, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.txs[tx.ID]; !ok {
		return fmt.Errorf("transaction %q: %w", tx.ID, core.ErrNotFound)
	}
	f.txs[tx.ID] = tx
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.txs, id)
	return nil
}

func (f *fakeStore) ListHouseLedgers(_ context.Context, filter ObligationFilter) ([]HouseLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []HouseLedger
	for _, h := range f.houses {
		if filter.MandatoryOnly && !h.MandatoryFee {
			continue
		}
		if filter.Group != "" && h.Group != filter.Group {
			continue
		}
		hl := HouseLedger{House: h, MonthStatuses: f.monthStatuses[h.HouseID]}
		var months []core.Obligation
		for _, ob := range f.obligations[h.HouseID] {
			if filter.Period != "" && ob.Month != filter.Period {
				continue
			}
			if filter.Status != "" && ob.Status != filter.Status {
				continue
			}
			months = append(months, ob)
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
		hl.Obligations = months
		out = append(out, hl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].House.HouseID < out[j].House.HouseID })
	return out, nil
}

func (f *fakeStore) CountMandatoryHouses(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.houses {
		if h.MandatoryFee {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MonthlyTotals(_ context.Context, from, to core.MonthKey) ([]PeriodTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byMonth := make(map[core.MonthKey]*PeriodTotals)
	for _, tx := range f.txs {
		m := core.MonthOf(tx.Date)
		if m.Before(from) || m.After(to) {
			continue
		}
		t, ok := byMonth[m]
		if !ok {
			t = &PeriodTotals{Period: m}
			byMonth[m] = t
		}
		switch tx.Type {
		case core.TypeIncome, core.TypeFeePayment:
			t.Income += tx.Amount.Rupiah
			if tx.FundTagged() {
				t.FundIncome += tx.Amount.Rupiah
			}
		case core.TypeExpense:
			t.Expense += tx.Amount.Rupiah
			if tx.FundTagged() {
				t.FundExpense += tx.Amount.Rupiah
			}
		}
	}
	out := make([]PeriodTotals, 0, len(byMonth))
	for _, t := range byMonth {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (f *fakeStore) ListTransactionsBetween(_ context.Context, from, to time.Time) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// fakePublisher records published payment events.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishPaymentEvent(_ context.Context, kind, transactionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind+":"+transactionID)
	return nil
}
