package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ProgramEpoch is the first month the community collected dues.
	// Every cumulative report folds forward from here.
	ProgramEpoch MonthKey = "2024-07"

	// FundTag marks transactions belonging to the shared community fund.
	// Tagged transactions stay in raw totals but are excluded from the
	// reported balance view.
	FundTag = "#IPLPaguyuban"

	// DefaultCommunityFee is the rate assigned to a house created without
	// an explicit community fee, in whole rupiah.
	DefaultCommunityFee int64 = 70000
)

const (
	OccupancyEmpty     Occupancy = "empty"
	OccupancyOccupied  Occupancy = "occupied"
	OccupancyWeekend   Occupancy = "weekend"
	OccupancyNoContact Occupancy = "no_contact"
)

const (
	ObligationUnpaid  ObligationStatus = "unpaid"
	ObligationPartial ObligationStatus = "partially_paid"
	ObligationPaid    ObligationStatus = "paid"
	ObligationTBD     ObligationStatus = "tbd"
)

const (
	ComponentCommunity    ComponentName = "community"
	ComponentNeighborhood ComponentName = "neighborhood"
)

const (
	TypeIncome     TransactionType = "income"
	TypeExpense    TransactionType = "expense"
	TypeFeePayment TransactionType = "fee_payment"
)

const (
	PaymentCash     PaymentType = "cash"
	PaymentTransfer PaymentType = "transfer"
)

const (
	StatusSucceeded TransactionStatus = "succeeded"
	StatusFailed    TransactionStatus = "failed"
	StatusPending   TransactionStatus = "pending"
)

const (
	RoleVisitor    Role = "visitor"
	RoleUser       Role = "user"
	RoleEditor     Role = "editor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

type (
	Occupancy         string
	ObligationStatus  string
	ComponentName     string
	TransactionType   string
	PaymentType       string
	TransactionStatus string
	Role              string

	// House is one residential unit. HouseID is the immutable business key
	// ("A-01" and the like); Version is the optimistic concurrency token
	// bumped on every save.
	House struct {
		HouseID         string
		ResidentName    string
		WhatsAppNumber  string
		OccupancyStatus Occupancy
		MandatoryFee    bool
		Group           string
		CommunityFee    Money
		NeighborhoodFee Money
		Version         int64
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// FeeComponent is one named share of a monthly obligation.
	FeeComponent struct {
		Name   ComponentName
		Amount Money
	}

	// Obligation is what a house owes for a single month. At most one exists
	// per (house, month). TransactionID is set iff the month is settled;
	// SettledAt orders competing settlements of the same month.
	Obligation struct {
		Month         MonthKey
		Status        ObligationStatus
		Components    []FeeComponent
		TransactionID string
		SettledAt     *time.Time
	}

	// MonthStatus lets a house's billing obligation for one month diverge
	// from its default, e.g. vacant in a single month.
	MonthStatus struct {
		Month              MonthKey
		Occupancy          Occupancy
		CommunityFeeDue    bool
		NeighborhoodFeeDue bool
	}

	// Transaction is one money movement. HouseID is empty for
	// community-wide income/expense. RelatedMonths is only meaningful for
	// fee payments and lists the months the payment settles.
	Transaction struct {
		ID            string
		HouseID       string
		Type          TransactionType
		PaymentType   PaymentType
		Amount        Money
		Description   string
		ProofURL      string
		Date          time.Time
		CreatedAt     time.Time
		Status        TransactionStatus
		RelatedMonths []MonthKey
		CreatedBy     string
	}

	// User is an authenticated actor. PasswordHash is a bcrypt hash.
	User struct {
		ID           string
		Username     string
		Email        string
		PasswordHash string
		Role         Role
		HouseID      string
		CreatedAt    time.Time
	}

	// Upload records a stored payment-proof file.
	Upload struct {
		ID        string
		Title     string
		URL       string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyHouseID     = fmt.Errorf("%w: empty house id", ErrInvalidInput)
	ErrEmptyDescription = fmt.Errorf("%w: empty description", ErrInvalidInput)
	ErrBadOccupancy     = fmt.Errorf("%w: unknown occupancy status", ErrInvalidInput)
	ErrBadType          = fmt.Errorf("%w: unknown transaction type", ErrInvalidInput)
	ErrBadPaymentType   = fmt.Errorf("%w: unknown payment type", ErrInvalidInput)
	ErrBadStatus        = fmt.Errorf("%w: unknown transaction status", ErrInvalidInput)
	ErrNoRelatedMonths  = fmt.Errorf("%w: fee payment needs at least one related month", ErrInvalidInput)
	ErrStrayMonths      = fmt.Errorf("%w: related months are only valid on fee payments", ErrInvalidInput)
	ErrDuplicateMonth   = fmt.Errorf("%w: duplicate related month", ErrInvalidInput)
)

func (o Occupancy) Valid() bool {
	switch o {
	case OccupancyEmpty, OccupancyOccupied, OccupancyWeekend, OccupancyNoContact:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RoleUser, RoleEditor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (s ObligationStatus) Valid() bool {
	switch s {
	case ObligationUnpaid, ObligationPartial, ObligationPaid, ObligationTBD:
		return true
	}
	return false
}

func (h House) Validate() error {
	if strings.TrimSpace(h.HouseID) == "" {
		return ErrEmptyHouseID
	}
	if !h.OccupancyStatus.Valid() {
		return ErrBadOccupancy
	}
	if err := h.CommunityFee.Validate(); err != nil {
		return fmt.Errorf("community fee: %w", err)
	}
	if h.NeighborhoodFee.Rupiah < 0 {
		return fmt.Errorf("neighborhood fee: %w", ErrInvalidAmount)
	}
	return nil
}

// MonthlyComponents snapshots the house's current rates into the component
// list a freshly provisioned obligation carries. A house without a
// neighborhood rate yields a community component only, which is how legacy
// single-fee houses are expressed.
func (h House) MonthlyComponents() []FeeComponent {
	cs := []FeeComponent{{Name: ComponentCommunity, Amount: h.CommunityFee}}
	if h.NeighborhoodFee.Rupiah > 0 {
		cs = append(cs, FeeComponent{Name: ComponentNeighborhood, Amount: h.NeighborhoodFee})
	}
	return cs
}

// Amount is the total the obligation charges across all fee components.
func (o Obligation) Amount() Money {
	var total int64
	for _, c := range o.Components {
		total += c.Amount.Rupiah
	}
	return Money{Rupiah: total}
}

// Settled reports whether the obligation is linked to a transaction.
func (o Obligation) Settled() bool {
	return o.TransactionID != ""
}

func (t Transaction) Validate() error {
	switch t.Type {
	case TypeIncome, TypeExpense, TypeFeePayment:
	default:
		return ErrBadType
	}
	switch t.PaymentType {
	case PaymentCash, PaymentTransfer:
	default:
		return ErrBadPaymentType
	}
	switch t.Status {
	case StatusSucceeded, StatusFailed, StatusPending:
	default:
		return ErrBadStatus
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: missing transaction date", ErrInvalidInput)
	}
	if t.Type != TypeFeePayment {
		if len(t.RelatedMonths) > 0 {
			return ErrStrayMonths
		}
		return nil
	}
	if len(t.RelatedMonths) == 0 {
		return ErrNoRelatedMonths
	}
	seen := make(map[MonthKey]struct{}, len(t.RelatedMonths))
	for _, m := range t.RelatedMonths {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, dup := seen[m]; dup {
			return ErrDuplicateMonth
		}
		seen[m] = struct{}{}
	}
	return nil
}

// FundTagged reports whether the transaction belongs to the community fund.
// The tag match is case-insensitive, as the original ledger treated it.
func (t Transaction) FundTagged() bool {
	return strings.Contains(strings.ToLower(t.Description), strings.ToLower(FundTag))
}
