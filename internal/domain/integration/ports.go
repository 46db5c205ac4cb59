package integration

import (
	"context"
	"iter"
	"time"
)

// ---------------------------------------------------------------------------
// Storefront ports
// ---------------------------------------------------------------------------

// OrderSource yields storefront orders lazily, one page at a time. A non-nil
// error is yielded in place of an order; after an UpstreamFatalError the
// sequence ends.
type OrderSource interface {
	Orders(ctx context.Context) iter.Seq2[StorefrontOrder, error]
}

// ProductSource fetches full product detail from the storefront
type ProductSource interface {
	GetProduct(ctx context.Context, productID int64) (*StorefrontProduct, error)
}

// ---------------------------------------------------------------------------
// Master data ports
// ---------------------------------------------------------------------------

// ResolutionKind is the kind of master record a Resolution refers to
type ResolutionKind string

const (
	ResolutionKindCustomer ResolutionKind = "CUSTOMER"
	ResolutionKindItem     ResolutionKind = "ITEM"
)

// ResolutionOutcome tells whether a master record was found or created
type ResolutionOutcome string

const (
	ResolutionFound   ResolutionOutcome = "FOUND"
	ResolutionCreated ResolutionOutcome = "CREATED"
)

// Resolution is the auditable result of ensuring a master record exists
type Resolution struct {
	Kind       ResolutionKind
	ExternalID string
	LocalName  string
	Outcome    ResolutionOutcome
}

// MasterDataLookup answers "which local record maps to this storefront id".
// Absent records are reported with shared.ErrNotFound.
type MasterDataLookup interface {
	FindCustomerByStorefrontID(ctx context.Context, customerID int64) (string, error)
	FindItemCodeByVariantID(ctx context.Context, variantID int64) (string, error)
	FindItemCodeByProductID(ctx context.Context, productID int64) (string, error)
}

// MasterDataResolver returns the existing local record or creates one
type MasterDataResolver interface {
	EnsureCustomer(ctx context.Context, customer StorefrontCustomer) (Resolution, error)
	EnsureItem(ctx context.Context, warehouse string, product StorefrontProduct) (Resolution, error)
}

// ---------------------------------------------------------------------------
// Run bookkeeping ports
// ---------------------------------------------------------------------------

// SyncLogRepository persists failure records for manual reprocessing
type SyncLogRepository interface {
	Save(ctx context.Context, log *SyncLog) error
	FindRecent(ctx context.Context, limit int) ([]SyncLog, error)
}

// OrderLock guards a storefront order against concurrent runners.
// Acquire returns false when another holder owns the key.
type OrderLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
