// internal/models/intent.go
package models

import "time"

type IntentKind string

const (
	IntentBuy            IntentKind = "buy"
	IntentSell           IntentKind = "sell"
	IntentInvest         IntentKind = "invest"
	IntentSeekInvestment IntentKind = "seek_investment"
	IntentPartner        IntentKind = "partner"
)

type AssetType string

const (
	AssetCommodity       AssetType = "commodity"
	AssetRealEstate      AssetType = "real_estate"
	AssetEquity          AssetType = "equity"
	AssetDebt            AssetType = "debt"
	AssetInfrastructure  AssetType = "infrastructure"
	AssetRenewableEnergy AssetType = "renewable_energy"
	AssetMining          AssetType = "mining"
	AssetOilGas          AssetType = "oil_gas"
	AssetBusiness        AssetType = "business"
	AssetOther           AssetType = "other"
)

type IntentStatus string

const (
	IntentActive    IntentStatus = "active"
	IntentPaused    IntentStatus = "paused"
	IntentMatched   IntentStatus = "matched"
	IntentExpired   IntentStatus = "expired"
	IntentCancelled IntentStatus = "cancelled"
)

type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityNetwork  Visibility = "network"
	VisibilityVerified Visibility = "verified"
	VisibilityPublic   Visibility = "public"
)

// Intent is a user's sealed statement of a desired transaction.
// Keywords and Embedding are derived from the text fields on every title or
// description change; Embedding is nil when the embedding service was unavailable.
type Intent struct {
	ID              string       `json:"id"`
	UserID          string       `json:"userId"`
	Kind            IntentKind   `json:"kind"`
	Status          IntentStatus `json:"status"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	AssetType       *AssetType   `json:"assetType,omitempty"`
	AssetSubtype    *string      `json:"assetSubtype,omitempty"`
	MinValue        *float64     `json:"minValue,omitempty"`
	MaxValue        *float64     `json:"maxValue,omitempty"`
	Currency        string       `json:"currency"`
	TargetLocations []string     `json:"targetLocations,omitempty"`
	TargetTimeline  *string      `json:"targetTimeline,omitempty"`
	IsAnonymous     bool         `json:"isAnonymous"`
	Visibility      Visibility   `json:"visibilityLevel"`
	Keywords        []string     `json:"keywords,omitempty"`
	Embedding       []float64    `json:"-"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// AssetCategory returns the asset type as text, or "" when unset.
func (i *Intent) AssetCategory() string {
	if i.AssetType == nil {
		return ""
	}
	return string(*i.AssetType)
}

// IntentDraft carries the caller-supplied fields of a new intent.
type IntentDraft struct {
	Kind            IntentKind  `json:"kind" validate:"required,oneof=buy sell invest seek_investment partner"`
	Title           string      `json:"title" validate:"required,min=3,max=255"`
	Description     string      `json:"description,omitempty" validate:"max=10000"`
	AssetType       *AssetType  `json:"assetType,omitempty" validate:"omitempty,oneof=commodity real_estate equity debt infrastructure renewable_energy mining oil_gas business other"`
	AssetSubtype    *string     `json:"assetSubtype,omitempty" validate:"omitempty,max=128"`
	MinValue        *float64    `json:"minValue,omitempty" validate:"omitempty,gte=0"`
	MaxValue        *float64    `json:"maxValue,omitempty" validate:"omitempty,gte=0"`
	Currency        string      `json:"currency,omitempty" validate:"omitempty,len=3"`
	TargetLocations []string    `json:"targetLocations,omitempty" validate:"max=50,dive,max=128"`
	TargetTimeline  *string     `json:"targetTimeline,omitempty" validate:"omitempty,max=64"`
	IsAnonymous     *bool       `json:"isAnonymous,omitempty"`
	Visibility      *Visibility `json:"visibilityLevel,omitempty" validate:"omitempty,oneof=private network verified public"`
}

// IntentPatch holds the fields an owner may change. Nil means unchanged.
type IntentPatch struct {
	Status          *IntentStatus `json:"status,omitempty" validate:"omitempty,oneof=active paused matched expired cancelled"`
	Title           *string       `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description     *string       `json:"description,omitempty" validate:"omitempty,max=10000"`
	AssetType       *AssetType    `json:"assetType,omitempty" validate:"omitempty,oneof=commodity real_estate equity debt infrastructure renewable_energy mining oil_gas business other"`
	AssetSubtype    *string       `json:"assetSubtype,omitempty" validate:"omitempty,max=128"`
	MinValue        *float64      `json:"minValue,omitempty" validate:"omitempty,gte=0"`
	MaxValue        *float64      `json:"maxValue,omitempty" validate:"omitempty,gte=0"`
	Currency        *string       `json:"currency,omitempty" validate:"omitempty,len=3"`
	TargetLocations []string      `json:"targetLocations,omitempty" validate:"max=50,dive,max=128"`
	TargetTimeline  *string       `json:"targetTimeline,omitempty" validate:"omitempty,max=64"`
	IsAnonymous     *bool         `json:"isAnonymous,omitempty"`
	Visibility      *Visibility   `json:"visibilityLevel,omitempty" validate:"omitempty,oneof=private network verified public"`
}

// TextChanged reports whether the patch touches the fields embeddings derive from.
func (p IntentPatch) TextChanged() bool {
	return p.Title != nil || p.Description != nil
}
