package http

import (
	"fmt"
	"time"

	"iuran/internal/core"
	"iuran/internal/ledger"
)

// Wire types. Field names mirror what the frontend already speaks:
// snake_case, amounts as whole rupiah integers, months as "YYYY-MM".

type houseRequest struct {
	HouseID         string `json:"house_id"`
	ResidentName    string `json:"resident_name"`
	WhatsAppNumber  string `json:"whatsapp_number"`
	OccupancyStatus string `json:"occupancy_status"`
	MandatoryFee    *bool  `json:"mandatory_fee"`
	Group           string `json:"group"`
	CommunityFee    int64  `json:"community_fee"`
	NeighborhoodFee int64  `json:"neighborhood_fee"`
	Version         int64  `json:"version"`
}

func (r houseRequest) toCore() core.House {
	h := core.House{
		HouseID:         r.HouseID,
		ResidentName:    r.ResidentName,
		WhatsAppNumber:  r.WhatsAppNumber,
		OccupancyStatus: core.Occupancy(r.OccupancyStatus),
		MandatoryFee:    true,
		Group:           r.Group,
		CommunityFee:    core.Money{Rupiah: r.CommunityFee},
		NeighborhoodFee: core.Money{Rupiah: r.NeighborhoodFee},
		Version:         r.Version,
	}
	if r.MandatoryFee != nil {
		h.MandatoryFee = *r.MandatoryFee
	}
	if h.OccupancyStatus == "" {
		h.OccupancyStatus = core.OccupancyNoContact
	}
	if h.CommunityFee.Rupiah == 0 {
		h.CommunityFee = core.Money{Rupiah: core.DefaultCommunityFee}
	}
	return h
}

type houseResponse struct {
	HouseID         string    `json:"house_id"`
	ResidentName    string    `json:"resident_name"`
	WhatsAppNumber  string    `json:"whatsapp_number"`
	OccupancyStatus string    `json:"occupancy_status"`
	MandatoryFee    bool      `json:"mandatory_fee"`
	Group           string    `json:"group,omitempty"`
	CommunityFee    int64     `json:"community_fee"`
	NeighborhoodFee int64     `json:"neighborhood_fee"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toHouseResponse(h core.House) houseResponse {
	return houseResponse{
		HouseID:         h.HouseID,
		ResidentName:    h.ResidentName,
		WhatsAppNumber:  h.WhatsAppNumber,
		OccupancyStatus: string(h.OccupancyStatus),
		MandatoryFee:    h.MandatoryFee,
		Group:           h.Group,
		CommunityFee:    h.CommunityFee.Rupiah,
		NeighborhoodFee: h.NeighborhoodFee.Rupiah,
		Version:         h.Version,
		CreatedAt:       h.CreatedAt,
		UpdatedAt:       h.UpdatedAt,
	}
}

type feeComponentResponse struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type obligationResponse struct {
	Month         string                 `json:"month"`
	Status        string                 `json:"status"`
	Amount        int64                  `json:"amount"`
	Components    []feeComponentResponse `json:"components"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	SettledAt     *time.Time             `json:"settled_at,omitempty"`
}

func toObligationResponse(ob core.Obligation) obligationResponse {
	components := make([]feeComponentResponse, len(ob.Components))
	for i, c := range ob.Components {
		components[i] = feeComponentResponse{Name: string(c.Name), Amount: c.Amount.Rupiah}
	}
	return obligationResponse{
		Month:         string(ob.Month),
		Status:        string(ob.Status),
		Amount:        ob.Amount().Rupiah,
		Components:    components,
		TransactionID: ob.TransactionID,
		SettledAt:     ob.SettledAt,
	}
}

type monthStatusRequest struct {
	Occupancy          string `json:"occupancy"`
	CommunityFeeDue    *bool  `json:"community_fee_due"`
	NeighborhoodFeeDue *bool  `json:"neighborhood_fee_due"`
}

type monthStatusResponse struct {
	Month              string `json:"month"`
	Occupancy          string `json:"occupancy"`
	CommunityFeeDue    bool   `json:"community_fee_due"`
	NeighborhoodFeeDue bool   `json:"neighborhood_fee_due"`
}

func toMonthStatusResponse(ms core.MonthStatus) monthStatusResponse {
	return monthStatusResponse{
		Month:              string(ms.Month),
		Occupancy:          string(ms.Occupancy),
		CommunityFeeDue:    ms.CommunityFeeDue,
		NeighborhoodFeeDue: ms.NeighborhoodFeeDue,
	}
}

type houseDetailResponse struct {
	houseResponse
	Obligations   []obligationResponse  `json:"obligations"`
	MonthStatuses []monthStatusResponse `json:"month_statuses"`
}

type transactionRequest struct {
	HouseID       string   `json:"house_id"`
	Type          string   `json:"transaction_type"`
	PaymentType   string   `json:"payment_type"`
	Amount        int64    `json:"amount"`
	Description   string   `json:"description"`
	ProofURL      string   `json:"proof_of_transfer"`
	Date          string   `json:"date"`
	Status        string   `json:"status"`
	RelatedMonths []string `json:"related_months"`
}

func (r transactionRequest) toInput() (ledger.TransactionInput, error) {
	in := ledger.TransactionInput{
		HouseID:     r.HouseID,
		Type:        core.TransactionType(r.Type),
		PaymentType: core.PaymentType(r.PaymentType),
		Amount:      core.Money{Rupiah: r.Amount},
		Description: r.Description,
		ProofURL:    r.ProofURL,
		Status:      core.TransactionStatus(r.Status),
	}
	if in.Status == "" {
		in.Status = core.StatusSucceeded
	}
	if r.Date != "" {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			date, err = time.Parse(time.RFC3339, r.Date)
			if err != nil {
				return ledger.TransactionInput{}, fmt.Errorf("%w: bad date %q", core.ErrInvalidInput, r.Date)
			}
		}
		in.Date = date.UTC()
	}
	for _, m := range r.RelatedMonths {
		in.RelatedMonths = append(in.RelatedMonths, core.MonthKey(m))
	}
	return in, nil
}

type transactionResponse struct {
	ID            string    `json:"id"`
	HouseID       string    `json:"house_id,omitempty"`
	Type          string    `json:"transaction_type"`
	PaymentType   string    `json:"payment_type"`
	Amount        int64     `json:"amount"`
	Description   string    `json:"description"`
	ProofURL      string    `json:"proof_of_transfer,omitempty"`
	Date          time.Time `json:"date"`
	CreatedAt     time.Time `json:"created_at"`
	Status        string    `json:"status"`
	RelatedMonths []string  `json:"related_months,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	months := make([]string, len(t.RelatedMonths))
	for i, m := range t.RelatedMonths {
		months[i] = string(m)
	}
	return transactionResponse{
		ID:            t.ID,
		HouseID:       t.HouseID,
		Type:          string(t.Type),
		PaymentType:   string(t.PaymentType),
		Amount:        t.Amount.Rupiah,
		Description:   t.Description,
		ProofURL:      t.ProofURL,
		Date:          t.Date,
		CreatedAt:     t.CreatedAt,
		Status:        string(t.Status),
		RelatedMonths: months,
		CreatedBy:     t.CreatedBy,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	HouseID  string `json:"house_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	HouseID  string `json:"house_id,omitempty"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
		HouseID:  u.HouseID,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
