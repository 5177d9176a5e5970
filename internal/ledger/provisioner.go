package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"iuran/internal/core"
)

const defaultProvisionConcurrency = 8

// Provisioner guarantees every house has exactly one obligation entry per
// month in a target range. Runs are idempotent: already-provisioned months
// are left exactly as they are, so an interrupted batch is resumed by
// running it again.
type Provisioner struct {
	houses      HouseStore
	obligations ObligationStore
	concurrency int
	now         func() time.Time
}

// ProvisionSummary reports what one provisioning run did. Failures are
// per-house and never abort the batch.
type ProvisionSummary struct {
	Houses  int
	Months  int
	Created int
	Failed  int
}

func NewProvisioner(houses HouseStore, obligations ObligationStore) *Provisioner {
	return &Provisioner{
		houses:      houses,
		obligations: obligations,
		concurrency: defaultProvisionConcurrency,
		now:         time.Now,
	}
}

// SetConcurrency bounds how many houses are provisioned in parallel.
// Values below 1 are ignored.
func (p *Provisioner) SetConcurrency(n int) {
	if n > 0 {
		p.concurrency = n
	}
}

// ProvisionYear provisions all twelve months of a calendar year for every
// house. This is the entry point the year-boundary scheduler calls.
func (p *Provisioner) ProvisionYear(ctx context.Context, year int) (ProvisionSummary, error) {
	from, to := core.YearRange(year)
	return p.ProvisionRange(ctx, from, to)
}

// ProvisionToCurrent provisions from the program epoch through the current
// month.
func (p *Provisioner) ProvisionToCurrent(ctx context.Context) (ProvisionSummary, error) {
	return p.ProvisionRange(ctx, core.ProgramEpoch, core.MonthOf(p.now()))
}

// ProvisionRange provisions every month in [from, to] for every house.
// Houses are processed concurrently but each house's months are written
// serially, so two passes never race on the same house's ledger.
func (p *Provisioner) ProvisionRange(ctx context.Context, from, to core.MonthKey) (ProvisionSummary, error) {
	months, err := core.MonthRange(from, to)
	if err != nil {
		return ProvisionSummary{}, err
	}

	houses, err := p.houses.ListHouses(ctx)
	if err != nil {
		return ProvisionSummary{}, fmt.Errorf("list houses: %w", err)
	}

	var created, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, house := range houses {
		g.Go(func() error {
			n, err := p.provisionHouse(gctx, house, months)
			created.Add(int64(n))
			if err != nil {
				// Per-house isolation: log and keep going.
				failed.Add(1)
				slog.ErrorContext(gctx, "Provisioning failed for house",
					"house_id", house.HouseID,
					"from", from,
					"to", to,
					"error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := ProvisionSummary{
		Houses:  len(houses),
		Months:  len(months),
		Created: int(created.Load()),
		Failed:  int(failed.Load()),
	}
	slog.InfoContext(ctx, "Provisioning run finished",
		"from", from,
		"to", to,
		"houses", summary.Houses,
		"created", summary.Created,
		"failed", summary.Failed)
	return summary, nil
}

func (p *Provisioner) provisionHouse(ctx context.Context, house core.House, months []core.MonthKey) (int, error) {
	components := house.MonthlyComponents()
	created := 0
	for _, month := range months {
		ob := core.Obligation{
			Month:      month,
			Status:     core.ObligationUnpaid,
			Components: components,
		}
		inserted, err := p.obligations.ProvisionObligation(ctx, house.HouseID, ob)
		if err != nil {
			return created, fmt.Errorf("provision %s: %w", month, err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}
