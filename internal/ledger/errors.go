package ledger

import "errors"

var (
	ErrInvalidQuantity     = errors.New("quantity must be a positive finite number")
	ErrUnknownMovementKind = errors.New("unknown movement kind")
	ErrDirectionRequired   = errors.New("adjustment entries require an explicit direction")
	ErrInvalidDirection    = errors.New("direction must be +1 or -1")
	ErrConversionRequired  = errors.New("unit is not convertible to the item base unit and no conversion factor was supplied")
	ErrPriceOverrideDenied = errors.New("unit price differs from the item reference price and override is not permitted")
	ErrReasonRequired      = errors.New("a reason is required for this operation")
	ErrWasteReasonRequired = errors.New("waste entries require a valid waste reason")
	ErrHotelMismatch       = errors.New("entry hotel does not match the item hotel")
	ErrNotPendingApproval  = errors.New("entry is not pending approval")
	ErrEntryDeleted        = errors.New("entry is already deleted")
)
