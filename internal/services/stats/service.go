package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/services/credits"
	"github.com/storyreel/backend/internal/timeutil"
)

var ErrInvalidPeriod = timeutil.ErrInvalidPeriod

const maxRecentTransactions = 50

// Reader supplies the transaction log and project names. ProjectNames must be
// a single batch lookup so name resolution never degenerates into N+1 queries.
type Reader interface {
	UserTransactions(ctx context.Context, userID uuid.UUID) ([]credits.Transaction, error)
	ProjectTransactions(ctx context.Context, projectID uuid.UUID) ([]credits.Transaction, error)
	ProjectNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service folds the append-only transaction log into reporting aggregates.
// Pure read-side; the ledger rows are the single source of truth.
type Service struct {
	reader Reader
	loc    *time.Location
}

func NewService(reader Reader, loc *time.Location) *Service {
	return &Service{reader: reader, loc: timeutil.EnsureLocation(loc)}
}

// Totals is the aggregate header of a statistics payload.
type Totals struct {
	Transactions  int64   `json:"transactions"`
	CreditsSpent  int64   `json:"credits_spent"`
	CreditsEarned int64   `json:"credits_earned"`
	RealCostUSD   float64 `json:"real_cost_usd"`
}

// BreakdownItem is one row of a by-action or by-provider breakdown.
type BreakdownItem struct {
	Key         string  `json:"key"`
	Count       int64   `json:"count"`
	Credits     int64   `json:"credits"`
	RealCostUSD float64 `json:"real_cost_usd"`
}

// ProjectBreakdown is one row of the per-project cost breakdown.
type ProjectBreakdown struct {
	ProjectID   uuid.UUID `json:"project_id"`
	Name        string    `json:"name"`
	Count       int64     `json:"count"`
	Credits     int64     `json:"credits"`
	RealCostUSD float64   `json:"real_cost_usd"`
}

// UserStatistics aggregates one user's full transaction history.
type UserStatistics struct {
	UserID        uuid.UUID             `json:"user_id"`
	Period        string                `json:"period"`
	Start         string                `json:"start"`
	End           string                `json:"end"`
	Totals        Totals                `json:"totals"`
	ByAction      []BreakdownItem       `json:"by_action"`
	ByProvider    []BreakdownItem       `json:"by_provider"`
	ByProject     []ProjectBreakdown    `json:"by_project"`
	Generations   int64                 `json:"generations"`
	Regenerations int64                 `json:"regenerations"`
	Recent        []credits.Transaction `json:"recent_transactions"`
}

// ProjectStatistics aggregates the costs one project has incurred.
type ProjectStatistics struct {
	ProjectID     uuid.UUID             `json:"project_id"`
	Name          string                `json:"name"`
	Totals        Totals                `json:"totals"`
	ByAction      []BreakdownItem       `json:"by_action"`
	ByProvider    []BreakdownItem       `json:"by_provider"`
	Generations   int64                 `json:"generations"`
	Regenerations int64                 `json:"regenerations"`
	Recent        []credits.Transaction `json:"recent_transactions"`
}

// UserStatistics folds the user's full log; the recent list is bounded by the
// requested period (default 30d).
func (s *Service) UserStatistics(ctx context.Context, userID uuid.UUID, period string) (UserStatistics, error) {
	if s == nil || s.reader == nil {
		return UserStatistics{}, errors.New("stats service not initialized")
	}
	if period == "" {
		period = timeutil.DefaultPeriod
	}
	window, err := timeutil.NewWindow(period, time.Now(), s.loc)
	if err != nil {
		return UserStatistics{}, ErrInvalidPeriod
	}

	txns, err := s.reader.UserTransactions(ctx, userID)
	if err != nil {
		return UserStatistics{}, fmt.Errorf("load user transactions: %w", err)
	}

	agg := fold(txns)
	projects, err := s.projectBreakdown(ctx, agg)
	if err != nil {
		return UserStatistics{}, err
	}

	return UserStatistics{
		UserID:        userID,
		Period:        window.Period(),
		Start:         window.StartString(),
		End:           window.EndString(),
		Totals:        agg.totals,
		ByAction:      sortedItems(agg.byAction),
		ByProvider:    sortedItems(agg.byProvider),
		ByProject:     projects,
		Generations:   agg.generations,
		Regenerations: agg.regenerations,
		Recent:        recentInWindow(txns, window),
	}, nil
}

// ProjectStatistics folds everything tagged with the project.
func (s *Service) ProjectStatistics(ctx context.Context, projectID uuid.UUID) (ProjectStatistics, error) {
	if s == nil || s.reader == nil {
		return ProjectStatistics{}, errors.New("stats service not initialized")
	}

	txns, err := s.reader.ProjectTransactions(ctx, projectID)
	if err != nil {
		return ProjectStatistics{}, fmt.Errorf("load project transactions: %w", err)
	}

	agg := fold(txns)
	names, err := s.reader.ProjectNames(ctx, []uuid.UUID{projectID})
	if err != nil {
		return ProjectStatistics{}, fmt.Errorf("resolve project name: %w", err)
	}

	recent := txns
	if len(recent) > maxRecentTransactions {
		recent = recent[:maxRecentTransactions]
	}

	return ProjectStatistics{
		ProjectID:     projectID,
		Name:          names[projectID],
		Totals:        agg.totals,
		ByAction:      sortedItems(agg.byAction),
		ByProvider:    sortedItems(agg.byProvider),
		Generations:   agg.generations,
		Regenerations: agg.regenerations,
		Recent:        recent,
	}, nil
}

type bucket struct {
	count    int64
	credits  int64
	realCost decimal.Decimal
}

type aggregate struct {
	totals        Totals
	realCost      decimal.Decimal
	byAction      map[string]*bucket
	byProvider    map[string]*bucket
	byProject     map[uuid.UUID]*bucket
	generations   int64
	regenerations int64
}

func fold(txns []credits.Transaction) aggregate {
	agg := aggregate{
		realCost:   decimal.Zero,
		byAction:   make(map[string]*bucket),
		byProvider: make(map[string]*bucket),
		byProject:  make(map[uuid.UUID]*bucket),
	}

	for _, txn := range txns {
		agg.totals.Transactions++
		spent := int64(0)
		if txn.Amount < 0 {
			spent = -txn.Amount
			agg.totals.CreditsSpent += spent
		} else if txn.Amount > 0 {
			agg.totals.CreditsEarned += txn.Amount
		}
		agg.realCost = agg.realCost.Add(txn.RealCost)

		addToBucket(agg.byAction, txn.Type.String(), spent, txn.RealCost)
		if txn.Provider != "" {
			addToBucket(agg.byProvider, txn.Provider.String(), spent, txn.RealCost)
		}
		if txn.ProjectID != nil {
			key := *txn.ProjectID
			b, ok := agg.byProject[key]
			if !ok {
				b = &bucket{realCost: decimal.Zero}
				agg.byProject[key] = b
			}
			b.count++
			b.credits += spent
			b.realCost = b.realCost.Add(txn.RealCost)
		}

		// Grants and unflagged cost-only rows are not generations.
		switch {
		case txn.Metadata.IsRegeneration || txn.Metadata.PrepaidRegeneration:
			agg.regenerations++
		case txn.Amount < 0:
			agg.generations++
		}
	}

	agg.totals.RealCostUSD = agg.realCost.InexactFloat64()
	return agg
}

func addToBucket(buckets map[string]*bucket, key string, spent int64, realCost decimal.Decimal) {
	b, ok := buckets[key]
	if !ok {
		b = &bucket{realCost: decimal.Zero}
		buckets[key] = b
	}
	b.count++
	b.credits += spent
	b.realCost = b.realCost.Add(realCost)
}

func (s *Service) projectBreakdown(ctx context.Context, agg aggregate) ([]ProjectBreakdown, error) {
	if len(agg.byProject) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(agg.byProject))
	for id := range agg.byProject {
		ids = append(ids, id)
	}
	names, err := s.reader.ProjectNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve project names: %w", err)
	}

	out := make([]ProjectBreakdown, 0, len(agg.byProject))
	for id, b := range agg.byProject {
		out = append(out, ProjectBreakdown{
			ProjectID:   id,
			Name:        names[id],
			Count:       b.count,
			Credits:     b.credits,
			RealCostUSD: b.realCost.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Credits != out[j].Credits {
			return out[i].Credits > out[j].Credits
		}
		return out[i].ProjectID.String() < out[j].ProjectID.String()
	})
	return out, nil
}

func sortedItems(buckets map[string]*bucket) []BreakdownItem {
	out := make([]BreakdownItem, 0, len(buckets))
	for key, b := range buckets {
		out = append(out, BreakdownItem{
			Key:         key,
			Count:       b.count,
			Credits:     b.credits,
			RealCostUSD: b.realCost.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Credits != out[j].Credits {
			return out[i].Credits > out[j].Credits
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func recentInWindow(txns []credits.Transaction, window timeutil.Window) []credits.Transaction {
	recent := make([]credits.Transaction, 0, maxRecentTransactions)
	for _, txn := range txns {
		if !window.Contains(txn.CreatedAt) {
			continue
		}
		recent = append(recent, txn)
		if len(recent) == maxRecentTransactions {
			break
		}
	}
	return recent
}
