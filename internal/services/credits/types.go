package credits

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
)

// Account is the per-user credit ledger head: the spendable balance plus
// lifetime aggregates. Balance never goes negative; the conditional decrement
// in the store enforces that at write time.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Balance       int64           `json:"balance"`
	TotalSpent    int64           `json:"total_spent"`
	TotalEarned   int64           `json:"total_earned"`
	TotalRealCost decimal.Decimal `json:"total_real_cost"`
	LastUpdated   time.Time       `json:"last_updated"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Transaction is one append-only ledger entry. Negative amount is a deduction,
// positive a grant, zero a cost-only attribution.
type Transaction struct {
	ID          uuid.UUID          `json:"id"`
	AccountID   uuid.UUID          `json:"account_id"`
	Amount      int64              `json:"amount"`
	RealCost    decimal.Decimal    `json:"real_cost"`
	Type        catalog.ActionType `json:"type"`
	Provider    catalog.Provider   `json:"provider,omitempty"`
	Description string             `json:"description,omitempty"`
	ProjectID   *uuid.UUID         `json:"project_id,omitempty"`
	Metadata    Metadata           `json:"metadata"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Metadata carries the contextual flags attached to a transaction. Known flags
// are typed; Extra round-trips any additional keys so older rows and newer
// writers stay compatible.
type Metadata struct {
	IsRegeneration      bool
	SceneID             string
	PrepaidRegeneration bool
	Extra               map[string]any
}

const (
	metaKeyIsRegeneration      = "isRegeneration"
	metaKeySceneID             = "sceneId"
	metaKeyPrepaidRegeneration = "prepaidRegeneration"
)

// IsZero reports whether the metadata carries no information at all.
func (m Metadata) IsZero() bool {
	return !m.IsRegeneration && !m.PrepaidRegeneration && m.SceneID == "" && len(m.Extra) == 0
}

// MarshalJSON folds the typed flags and the open extension map into one object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.IsRegeneration {
		out[metaKeyIsRegeneration] = true
	}
	if m.SceneID != "" {
		out[metaKeySceneID] = m.SceneID
	}
	if m.PrepaidRegeneration {
		out[metaKeyPrepaidRegeneration] = true
	}
	return json.Marshal(out)
}

// UnmarshalJSON lifts known keys into the typed fields and keeps the rest.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		switch k {
		case metaKeyIsRegeneration:
			b, _ := v.(bool)
			m.IsRegeneration = b
		case metaKeySceneID:
			s, _ := v.(string)
			m.SceneID = s
		case metaKeyPrepaidRegeneration:
			b, _ := v.(bool)
			m.PrepaidRegeneration = b
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[k] = v
		}
	}
	return nil
}

// SpendRequest describes one credit deduction.
type SpendRequest struct {
	UserID      uuid.UUID
	Amount      int64
	Type        catalog.ActionType
	Description string
	ProjectID   *uuid.UUID
	Provider    catalog.Provider
	Metadata    Metadata
	// RealCostOverride carries resolution- or model-dependent pricing computed
	// by the caller; when nil the pricing table resolves the cost.
	RealCostOverride *decimal.Decimal
}

// SpendResult is the single failure contract callers branch on.
type SpendResult struct {
	Success  bool            `json:"success"`
	Balance  int64           `json:"balance"`
	RealCost decimal.Decimal `json:"real_cost"`
	Error    string          `json:"error,omitempty"`
}

// TrackRequest attributes real upstream cost without touching the balance.
type TrackRequest struct {
	UserID      uuid.UUID
	RealCost    decimal.Decimal
	Type        catalog.ActionType
	Description string
	ProjectID   *uuid.UUID
	Provider    catalog.Provider
	Metadata    Metadata
}

// TrackResult reports a cost-only attribution.
type TrackResult struct {
	Success  bool            `json:"success"`
	RealCost decimal.Decimal `json:"real_cost"`
	Error    string          `json:"error,omitempty"`
}

// AddResult reports a credit grant.
type AddResult struct {
	Success bool   `json:"success"`
	Balance int64  `json:"balance"`
	Error   string `json:"error,omitempty"`
}

// BalanceCheck is the pre-flight gate result.
type BalanceCheck struct {
	HasEnough bool  `json:"has_enough"`
	Balance   int64 `json:"balance"`
	Required  int64 `json:"required"`
}
