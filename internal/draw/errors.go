package draw

import "errors"

// Draw validation errors. All are detected before any state mutation so a
// failed operation never leaves partial state behind.
var (
	// ErrInvalidState means the operation is not legal in the machine's
	// current phase (e.g. switching tiers while rolling).
	ErrInvalidState = errors.New("operation not allowed in current draw state")
	// ErrEmptyPool means no eligible participants remain.
	ErrEmptyPool = errors.New("prize pool is empty")
	// ErrInsufficientPool means fewer eligible participants than the batch size.
	ErrInsufficientPool = errors.New("not enough eligible participants for batch")
	// ErrNoTierSelected means no prize tier is active.
	ErrNoTierSelected = errors.New("no prize tier selected")
	// ErrTierExhausted means the active tier's quota is fully drawn.
	ErrTierExhausted = errors.New("prize tier is fully drawn")
	// ErrBatchExceedsRemaining means the batch size exceeds the tier's
	// remaining quota.
	ErrBatchExceedsRemaining = errors.New("batch size exceeds remaining quota")
	// ErrBatchNotAllowed means the batch size is not in the allowed set for
	// the active tier.
	ErrBatchNotAllowed = errors.New("batch size not in allowed set")
	// ErrUnknownTier means the tier id does not exist.
	ErrUnknownTier = errors.New("unknown prize tier")
)
