package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStateDraft        = "DRAFT"
	OrderStateStockPending = "STOCK_PENDING"
	OrderStateInKitchen    = "IN_KITCHEN"
	OrderStateReady        = "READY"
	OrderStateDelivered    = "DELIVERED"
	OrderStateCancelled    = "CANCELLED"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	StaffRoleWaiter  = "WAITER"
	StaffRoleManager = "MANAGER"
	StaffRoleAdmin   = "ADMIN"
)

// OrderStates lists every member of the order state machine, used to
// validate administrative state overrides.
var OrderStates = []string{
	OrderStateDraft,
	OrderStateStockPending,
	OrderStateInKitchen,
	OrderStateReady,
	OrderStateDelivered,
	OrderStateCancelled,
}

// IsOrderState reports whether s is a member of the order state enum.
func IsOrderState(s string) bool {
	for _, st := range OrderStates {
		if st == s {
			return true
		}
	}
	return false
}
