package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"iuran/internal/core"
	"iuran/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "iuran.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testHouse(id string) core.House {
	return core.House{
		HouseID:         id,
		ResidentName:    "Resident " + id,
		WhatsAppNumber:  "+62812000",
		OccupancyStatus: core.OccupancyOccupied,
		MandatoryFee:    true,
		CommunityFee:    core.Money{Rupiah: core.DefaultCommunityFee},
	}
}

func TestHouseRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateHouse(ctx, testHouse("A-01")); err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}

	got, err := repo.GetHouse(ctx, "A-01")
	if err != nil {
		t.Fatalf("GetHouse: %v", err)
	}
	if got.ResidentName != "Resident A-01" {
		t.Errorf("ResidentName = %q", got.ResidentName)
	}
	if got.CommunityFee.Rupiah != core.DefaultCommunityFee {
		t.Errorf("CommunityFee = %d", got.CommunityFee.Rupiah)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if !got.MandatoryFee {
		t.Error("MandatoryFee lost")
	}

	if _, err := repo.GetHouse(ctx, "Z-99"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing house error = %v, want ErrNotFound", err)
	}
}

func TestHouseUpdateVersionConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateHouse(ctx, testHouse("A-01")); err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	h, err := repo.GetHouse(ctx, "A-01")
	if err != nil {
		t.Fatalf("GetHouse: %v", err)
	}

	h.ResidentName = "Updated"
	if err := repo.UpdateHouse(ctx, *h); err != nil {
		t.Fatalf("UpdateHouse: %v", err)
	}

	// Second save with the stale version must not go through.
	h.ResidentName = "Stale writer"
	if err := repo.UpdateHouse(ctx, *h); !errors.Is(err, core.ErrConcurrencyConflict) {
		t.Fatalf("stale update error = %v, want ErrConcurrencyConflict", err)
	}

	got, err := repo.GetHouse(ctx, "A-01")
	if err != nil {
		t.Fatalf("GetHouse: %v", err)
	}
	if got.ResidentName != "Updated" {
		t.Errorf("ResidentName = %q, stale write was applied", got.ResidentName)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}

	missing := testHouse("Z-99")
	missing.Version = 1
	if err := repo.UpdateHouse(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("update missing house error = %v, want ErrNotFound", err)
	}
}

func TestDeleteHouseCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateHouse(ctx, testHouse("A-01")); err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	if _, err := repo.ProvisionObligation(ctx, "A-01", core.Obligation{
		Month:      "2024-07",
		Status:     core.ObligationUnpaid,
		Components: testHouse("A-01").MonthlyComponents(),
	}); err != nil {
		t.Fatalf("ProvisionObligation: %v", err)
	}

	if err := repo.DeleteHouse(ctx, "A-01"); err != nil {
		t.Fatalf("DeleteHouse: %v", err)
	}
	obs, err := repo.ListObligations(ctx, "A-01")
	if err != nil {
		t.Fatalf("ListObligations: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("obligations survived house deletion: %d", len(obs))
	}
	if err := repo.DeleteHouse(ctx, "A-01"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestProvisionObligationIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateHouse(ctx, testHouse("A-01")); err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	ob := core.Obligation{
		Month:      "2024-07",
		Status:     core.ObligationUnpaid,
		Components: testHouse("A-01").MonthlyComponents(),
	}

	created, err := repo.ProvisionObligation(ctx, "A-01", ob)
	if err != nil {
		t.Fatalf("ProvisionObligation: %v", err)
	}
	if !created {
		t.Fatal("first provision reported created=false")
	}

	created, err = repo.ProvisionObligation(ctx, "A-01", ob)
	if err != nil {
		t.Fatalf("ProvisionObligation again: %v", err)
	}
	if created {
		t.Fatal("second provision reported created=true")
	}
}

func TestSettleObligationNewerWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateHouse(ctx, testHouse("A-01")); err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	components := []core.FeeComponent{{Name: core.ComponentCommunity, Amount: core.Money{Rupiah: 50000}}}
	if _, err := repo.ProvisionObligation(ctx, "A-01", core.Obligation{
		Month: "2024-07", Status: core.ObligationUnpaid, Components: components,
	}); err != nil {
		t.Fatalf("ProvisionObligation: %v", err)
	}

	earlier := time.Now().UTC()
	later := earlier.Add(time.Second)

	settle := func(txID string, at time.Time) {
		t.Helper()
		err := repo.SettleObligation(ctx, "A-01", core.Obligation{
			Month:  "2024-07",
			Status: core.ObligationPaid,
			// Amounts here reflect the house's current rate, not the row's.
			Components:    []core.FeeComponent{{Name: core.ComponentCommunity, Amount: core.Money{Rupiah: 99999}}},
			TransactionID: txID,
			SettledAt:     &at,
		})
		if err != nil {
			t.Fatalf("SettleObligation(%s): %v", txID, err)
		}
	}

	settle("tx-new", later)
	settle("tx-old", earlier)

	obs, err := repo.ListObligations(ctx, "A-01")
	if err != nil {
		t.Fatalf("ListObligations: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("obligations = %d, want 1", len(obs))
	}
	if obs[0].TransactionID != "tx-new" {
		t.Errorf("TransactionID = %q, older settlement overwrote newer", obs[0].TransactionID)
	}
	if obs[0].Amount().Rupiah != 50000 {
		t.Errorf("Amount = %d, settle replaced provisioned amounts", obs[0].Amount().Rupiah)
	}
}

func TestSettleCreatesMissingMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateHouse(ctx, testHouse("A-01")); err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	at := time.Now().UTC()
	err := repo.SettleObligation(ctx, "A-01", core.Obligation{
		Month:         "2025-03",
		Status:        core.ObligationPaid,
		Components:    testHouse("A-01").MonthlyComponents(),
		TransactionID: "tx-1",
		SettledAt:     &at,
	})
	if err != nil {
		t.Fatalf("SettleObligation: %v", err)
	}

	obs, err := repo.ListObligations(ctx, "A-01")
	if err != nil {
		t.Fatalf("ListObligations: %v", err)
	}
	if len(obs) != 1 || obs[0].Month != "2025-03" || !obs[0].Settled() {
		t.Fatalf("obligations = %+v, want single settled 2025-03", obs)
	}
	if obs[0].Amount().Rupiah != core.DefaultCommunityFee {
		t.Errorf("Amount = %d, want %d", obs[0].Amount().Rupiah, core.DefaultCommunityFee)
	}
}

func TestReleaseObligationConditional(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateHouse(ctx, testHouse("A-01")); err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	at := time.Now().UTC()
	if err := repo.SettleObligation(ctx, "A-01", core.Obligation{
		Month: "2024-07", Status: core.ObligationPaid,
		Components:    testHouse("A-01").MonthlyComponents(),
		TransactionID: "tx-1", SettledAt: &at,
	}); err != nil {
		t.Fatalf("SettleObligation: %v", err)
	}

	released, err := repo.ReleaseObligation(ctx, "A-01", "2024-07", "tx-other")
	if err != nil {
		t.Fatalf("ReleaseObligation: %v", err)
	}
	if released {
		t.Fatal("release with wrong transaction id reported released=true")
	}

	released, err = repo.ReleaseObligation(ctx, "A-01", "2024-07", "tx-1")
	if err != nil {
		t.Fatalf("ReleaseObligation: %v", err)
	}
	if !released {
		t.Fatal("release with matching transaction id reported released=false")
	}

	obs, err := repo.ListObligations(ctx, "A-01")
	if err != nil {
		t.Fatalf("ListObligations: %v", err)
	}
	if obs[0].Status != core.ObligationUnpaid || obs[0].Settled() {
		t.Errorf("obligation after release = %+v, want unpaid and unlinked", obs[0])
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	date := time.Date(2024, 7, 5, 10, 0, 0, 0, time.UTC)
	tx := core.Transaction{
		ID:            "tx-1",
		HouseID:       "A-01",
		Type:          core.TypeFeePayment,
		PaymentType:   core.PaymentTransfer,
		Amount:        core.Money{Rupiah: 140000},
		Description:   "july and august dues",
		Date:          date,
		CreatedAt:     date,
		Status:        core.StatusSucceeded,
		RelatedMonths: []core.MonthKey{"2024-07", "2024-08"},
		CreatedBy:     "admin",
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if len(got.RelatedMonths) != 2 || got.RelatedMonths[0] != "2024-07" {
		t.Errorf("RelatedMonths = %v", got.RelatedMonths)
	}
	if !got.Date.Equal(date) {
		t.Errorf("Date = %v, want %v", got.Date, date)
	}

	got.Description = "corrected note"
	got.RelatedMonths = []core.MonthKey{"2024-08"}
	if err := repo.UpdateTransaction(ctx, *got); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	got, err = repo.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction after update: %v", err)
	}
	if got.Description != "corrected note" || len(got.RelatedMonths) != 1 {
		t.Errorf("updated transaction = %+v", got)
	}

	if err := repo.DeleteTransaction(ctx, "tx-1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "tx-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get deleted transaction error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteTransaction(ctx, "tx-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete deleted transaction error = %v, want ErrNotFound", err)
	}
}

func TestListTransactionsBetweenWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	add := func(id string, date time.Time) {
		t.Helper()
		err := repo.CreateTransaction(ctx, core.Transaction{
			ID: id, Type: core.TypeIncome, PaymentType: core.PaymentCash,
			Amount: core.Money{Rupiah: 1000}, Description: "donation " + id,
			Date: date, CreatedAt: date, Status: core.StatusSucceeded,
		})
		if err != nil {
			t.Fatalf("CreateTransaction(%s): %v", id, err)
		}
	}
	add("before", time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC))
	add("first", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	add("last", time.Date(2024, 7, 31, 23, 0, 0, 0, time.UTC))
	add("after", time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))

	from := core.MonthKey("2024-07").Start()
	to := core.MonthKey("2024-07").End()
	txs, err := repo.ListTransactionsBetween(ctx, from, to)
	if err != nil {
		t.Fatalf("ListTransactionsBetween: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("transactions in window = %d, want 2", len(txs))
	}
	if txs[0].ID != "first" || txs[1].ID != "last" {
		t.Errorf("window = [%s, %s], want [first, last]", txs[0].ID, txs[1].ID)
	}
}

func TestMonthlyTotalsGrouping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	add := func(id string, typ core.TransactionType, amount int64, desc string, date time.Time) {
		t.Helper()
		err := repo.CreateTransaction(ctx, core.Transaction{
			ID: id, Type: typ, PaymentType: core.PaymentTransfer,
			Amount: core.Money{Rupiah: amount}, Description: desc,
			Date: date, CreatedAt: date, Status: core.StatusSucceeded,
		})
		if err != nil {
			t.Fatalf("CreateTransaction(%s): %v", id, err)
		}
	}
	july := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	august := time.Date(2024, 8, 10, 0, 0, 0, 0, time.UTC)
	add("t1", core.TypeFeePayment, 70000, "monthly dues", july)
	add("t2", core.TypeIncome, 30000, "bazaar", july)
	add("t3", core.TypeExpense, 20000, "gate repair", july)
	add("t4", core.TypeIncome, 5000, "fund seed #IPLPaguyuban", july)
	add("t5", core.TypeExpense, 40000, "security salary", august)

	totals, err := repo.MonthlyTotals(ctx, "2024-07", "2024-08")
	if err != nil {
		t.Fatalf("MonthlyTotals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("periods = %d, want 2", len(totals))
	}
	julyTotals := totals[0]
	if julyTotals.Period != "2024-07" {
		t.Fatalf("first period = %s", julyTotals.Period)
	}
	if julyTotals.Income != 105000 {
		t.Errorf("july income = %d, want 105000", julyTotals.Income)
	}
	if julyTotals.Expense != 20000 {
		t.Errorf("july expense = %d, want 20000", julyTotals.Expense)
	}
	if julyTotals.FundIncome != 5000 || julyTotals.FundExpense != 0 {
		t.Errorf("july fund totals = %d/%d, want 5000/0", julyTotals.FundIncome, julyTotals.FundExpense)
	}
	if totals[1].Period != "2024-08" || totals[1].Expense != 40000 {
		t.Errorf("august totals = %+v", totals[1])
	}
}

func TestListHouseLedgersFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mandatory := testHouse("A-01")
	mandatory.Group = "east"
	exempt := testHouse("B-02")
	exempt.MandatoryFee = false
	for _, h := range []core.House{mandatory, exempt} {
		if err := repo.CreateHouse(ctx, h); err != nil {
			t.Fatalf("CreateHouse(%s): %v", h.HouseID, err)
		}
	}
	for _, month := range []core.MonthKey{"2024-07", "2024-08"} {
		if _, err := repo.ProvisionObligation(ctx, "A-01", core.Obligation{
			Month: month, Status: core.ObligationUnpaid, Components: mandatory.MonthlyComponents(),
		}); err != nil {
			t.Fatalf("ProvisionObligation: %v", err)
		}
	}
	at := time.Now().UTC()
	if err := repo.SettleObligation(ctx, "A-01", core.Obligation{
		Month: "2024-07", Status: core.ObligationPaid,
		Components: mandatory.MonthlyComponents(), TransactionID: "tx-1", SettledAt: &at,
	}); err != nil {
		t.Fatalf("SettleObligation: %v", err)
	}
	if err := repo.SetMonthStatus(ctx, "A-01", core.MonthStatus{
		Month: "2024-07", Occupancy: core.OccupancyOccupied,
		CommunityFeeDue: true, NeighborhoodFeeDue: true,
	}); err != nil {
		t.Fatalf("SetMonthStatus: %v", err)
	}

	ledgers, err := repo.ListHouseLedgers(ctx, ledger.ObligationFilter{MandatoryOnly: true})
	if err != nil {
		t.Fatalf("ListHouseLedgers: %v", err)
	}
	if len(ledgers) != 1 || ledgers[0].House.HouseID != "A-01" {
		t.Fatalf("mandatory-only ledgers = %+v", ledgers)
	}
	if len(ledgers[0].Obligations) != 2 {
		t.Errorf("obligations = %d, want 2", len(ledgers[0].Obligations))
	}
	if len(ledgers[0].MonthStatuses) != 1 {
		t.Errorf("month statuses = %d, want 1", len(ledgers[0].MonthStatuses))
	}

	ledgers, err = repo.ListHouseLedgers(ctx, ledger.ObligationFilter{
		Period: "2024-07", Status: core.ObligationPaid,
	})
	if err != nil {
		t.Fatalf("ListHouseLedgers filtered: %v", err)
	}
	var a01 *ledger.HouseLedger
	for i := range ledgers {
		if ledgers[i].House.HouseID == "A-01" {
			a01 = &ledgers[i]
		}
	}
	if a01 == nil {
		t.Fatal("A-01 missing from filtered ledgers")
	}
	if len(a01.Obligations) != 1 || a01.Obligations[0].Month != "2024-07" {
		t.Errorf("filtered obligations = %+v", a01.Obligations)
	}

	ledgers, err = repo.ListHouseLedgers(ctx, ledger.ObligationFilter{Group: "west"})
	if err != nil {
		t.Fatalf("ListHouseLedgers group: %v", err)
	}
	if len(ledgers) != 0 {
		t.Errorf("group-filtered ledgers = %d, want 0", len(ledgers))
	}

	n, err := repo.CountMandatoryHouses(ctx)
	if err != nil {
		t.Fatalf("CountMandatoryHouses: %v", err)
	}
	if n != 1 {
		t.Errorf("mandatory houses = %d, want 1", n)
	}
}

func TestUserUniqueness(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := core.User{
		ID: "u-1", Username: "warga", Email: "warga@example.com",
		PasswordHash: "$2a$10$hash", Role: core.RoleUser, CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	dup := u
	dup.ID = "u-2"
	dup.Email = "other@example.com"
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("duplicate username error = %v, want ErrDuplicateUser", err)
	}

	got, err := repo.GetUserByUsername(ctx, "warga")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != "u-1" || got.Role != core.RoleUser {
		t.Errorf("user = %+v", got)
	}
}
