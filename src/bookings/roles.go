package bookings

import (
	"carrental/src/types"
	"fmt"
)

// Identity is the authenticated requester, resolved once by the auth
// middleware and passed into every lifecycle operation.
type Identity struct {
	UserID uint
	Email  string
	Role   types.Role
}

type Operation string

const (
	OpCreateBooking Operation = "bookings:create"
	OpUpdateBooking Operation = "bookings:update"
	OpCancelBooking Operation = "bookings:cancel"
	OpConfirmPickup Operation = "bookings:confirm-pickup"
	OpComplete      Operation = "bookings:complete"
	OpListAll       Operation = "bookings:list-all"
	OpWipe          Operation = "bookings:wipe"
)

var requiredRoles = map[Operation]types.Role{
	OpCreateBooking: types.ROLE_USER,
	OpUpdateBooking: types.ROLE_USER,
	OpCancelBooking: types.ROLE_USER,
	OpConfirmPickup: types.ROLE_ADMIN,
	OpComplete:      types.ROLE_ADMIN,
	OpListAll:       types.ROLE_ADMIN,
	OpWipe:          types.ROLE_ADMIN,
}

// authorize checks the requester's role against the required-role table.
// Ownership checks happen separately inside each operation.
func (e *Engine) authorize(op Operation, requester Identity) error {
	required, ok := requiredRoles[op]
	if !ok {
		return &AuthorizationError{Reason: fmt.Sprintf("unknown operation: %s", op)}
	}
	if required == types.ROLE_ADMIN && requester.Role != types.ROLE_ADMIN {
		return &AuthorizationError{Reason: "You are not authorized to perform this action."}
	}
	return nil
}
