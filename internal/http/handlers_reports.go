package http

import (
	"fmt"
	"net/http"
	"time"

	"iuran/internal/core"
	"iuran/internal/ledger"
)

type houseLedgerResponse struct {
	House         houseResponse         `json:"house"`
	Obligations   []obligationResponse  `json:"obligations"`
	MonthStatuses []monthStatusResponse `json:"month_statuses,omitempty"`
}

func toHouseLedgerResponse(hl ledger.HouseLedger) houseLedgerResponse {
	out := houseLedgerResponse{
		House:       toHouseResponse(hl.House),
		Obligations: make([]obligationResponse, len(hl.Obligations)),
	}
	for i, ob := range hl.Obligations {
		out.Obligations[i] = toObligationResponse(ob)
	}
	for _, ms := range hl.MonthStatuses {
		out.MonthStatuses = append(out.MonthStatuses, toMonthStatusResponse(ms))
	}
	return out
}

type feeSummaryResponse struct {
	Houses         []houseLedgerResponse `json:"houses"`
	TotalUnits     int                   `json:"total_units"`
	TotalPaid      int64                 `json:"total_paid"`
	TotalUnpaid    int64                 `json:"total_unpaid"`
	TotalTBD       int64                 `json:"total_tbd"`
	HousesPaid     int                   `json:"houses_paid"`
	HousesSettled  int                   `json:"houses_settled"`
	HousesUnpaid   int                   `json:"houses_unpaid"`
	HousesTBD      int                   `json:"houses_tbd"`
	PercentagePaid float64               `json:"percentage_paid"`
}

type outstandingHouseResponse struct {
	HouseID      string   `json:"house_id"`
	ResidentName string   `json:"resident_name"`
	Periods      []string `json:"periods"`
	TotalFee     int64    `json:"total_fee"`
}

type balanceRowResponse struct {
	Month          string `json:"month"`
	OpeningBalance int64  `json:"opening_balance"`
	Income         int64  `json:"income"`
	Expense        int64  `json:"expense"`
	ClosingBalance int64  `json:"closing_balance"`
}

type typeBreakdownResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
}

func toTypeBreakdownResponse(b ledger.TypeBreakdown) typeBreakdownResponse {
	out := typeBreakdownResponse{
		Transactions: make([]transactionResponse, len(b.Transactions)),
		Total:        b.Total.Rupiah,
	}
	for i, t := range b.Transactions {
		out.Transactions[i] = toTransactionResponse(t)
	}
	return out
}

type monthlyReportResponse struct {
	Period          string                `json:"period"`
	Balance         balanceRowResponse    `json:"balance"`
	RawIncome       int64                 `json:"raw_income"`
	RawExpense      int64                 `json:"raw_expense"`
	RawBalance      int64                 `json:"raw_balance"`
	ReportedIncome  int64                 `json:"reported_income"`
	ReportedExpense int64                 `json:"reported_expense"`
	ReportedBalance int64                 `json:"reported_balance"`
	Income          typeBreakdownResponse `json:"income"`
	Expense         typeBreakdownResponse `json:"expense"`
	FeePayments     typeBreakdownResponse `json:"fee_payments"`
}

func (s *Server) handleFeeSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := feeFilterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.aggregator.FeeSummary(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := feeSummaryResponse{
		Houses:         make([]houseLedgerResponse, len(summary.Houses)),
		TotalUnits:     summary.TotalUnits,
		TotalPaid:      summary.TotalPaid.Rupiah,
		TotalUnpaid:    summary.TotalUnpaid.Rupiah,
		TotalTBD:       summary.TotalTBD.Rupiah,
		HousesPaid:     summary.HousesPaid,
		HousesSettled:  summary.HousesSettled,
		HousesUnpaid:   summary.HousesUnpaid,
		HousesTBD:      summary.HousesTBD,
		PercentagePaid: summary.PercentagePaid,
	}
	for i, hl := range summary.Houses {
		resp.Houses[i] = toHouseLedgerResponse(hl)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func feeFilterFromQuery(r *http.Request) (ledger.ObligationFilter, error) {
	q := r.URL.Query()
	filter := ledger.ObligationFilter{Group: q.Get("group")}

	if p := q.Get("period"); p != "" {
		period, err := core.ParseMonthKey(p)
		if err != nil {
			return ledger.ObligationFilter{}, err
		}
		filter.Period = period
	}
	if st := q.Get("status"); st != "" {
		status := core.ObligationStatus(st)
		if !status.Valid() {
			return ledger.ObligationFilter{}, fmt.Errorf("%w: unknown obligation status %q", core.ErrInvalidInput, st)
		}
		filter.Status = status
	}
	return filter, nil
}

func (s *Server) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	houses, err := s.aggregator.Outstanding(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]outstandingHouseResponse, len(houses))
	for i, h := range houses {
		periods := make([]string, len(h.Periods))
		for j, p := range h.Periods {
			periods[j] = string(p)
		}
		out[i] = outstandingHouseResponse{
			HouseID:      h.HouseID,
			ResidentName: h.ResidentName,
			Periods:      periods,
			TotalFee:     h.TotalFee.Rupiah,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHouseLedgers(w http.ResponseWriter, r *http.Request) {
	ledgers, err := s.aggregator.HouseLedgers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]houseLedgerResponse, len(ledgers))
	for i, hl := range ledgers {
		out[i] = toHouseLedgerResponse(hl)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	period := core.MonthOf(time.Now().UTC())
	if p := r.URL.Query().Get("period"); p != "" {
		parsed, err := core.ParseMonthKey(p)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		period = parsed
	}

	report, err := s.aggregator.MonthlyReport(r.Context(), period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, monthlyReportResponse{
		Period: string(report.Period),
		Balance: balanceRowResponse{
			Month:          string(report.Row.Month),
			OpeningBalance: report.Row.OpeningBalance,
			Income:         report.Row.Income,
			Expense:        report.Row.Expense,
			ClosingBalance: report.Row.ClosingBalance,
		},
		RawIncome:       report.RawIncome,
		RawExpense:      report.RawExpense,
		RawBalance:      report.RawBalance,
		ReportedIncome:  report.ReportedIncome,
		ReportedExpense: report.ReportedExpense,
		ReportedBalance: report.ReportedBalance,
		Income:          toTypeBreakdownResponse(report.Income),
		Expense:         toTypeBreakdownResponse(report.Expense),
		FeePayments:     toTypeBreakdownResponse(report.FeePayments),
	})
}
