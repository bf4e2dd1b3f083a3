package errors

import "fmt"

// TransitionDetails is attached to every state-transition failure so the
// caller can decide whether to re-fetch, retry or abort.
type TransitionDetails struct {
	Entity        string `json:"entity"`
	EntityID      string `json:"entity_id"`
	CurrentStatus string `json:"current_status"`
	Action        string `json:"action"`
}

// Transition builds a state-transition family error with standard details.
func Transition(code Code, entity string, entityID fmt.Stringer, current fmt.Stringer, action string) *Error {
	details := TransitionDetails{
		Entity: entity,
		Action: action,
	}
	if entityID != nil {
		details.EntityID = entityID.String()
	}
	if current != nil {
		details.CurrentStatus = current.String()
	}
	msg := fmt.Sprintf("cannot %s %s in status %s", action, entity, details.CurrentStatus)
	return New(code, msg).WithDetails(details)
}

// BalanceDetails carries the amounts of a request that exceeded what the
// entity still allows, next to the usual transition fields.
type BalanceDetails struct {
	TransitionDetails
	Requested string `json:"requested"`
	Remaining string `json:"remaining"`
}

// ExceedsBalance builds a state-transition family error for an amount above
// the remaining balance of entity.
func ExceedsBalance(code Code, entity string, entityID fmt.Stringer, current fmt.Stringer, action, requested, remaining string) *Error {
	base := Transition(code, entity, entityID, current, action)
	details, _ := base.Details().(TransitionDetails)
	return New(code, fmt.Sprintf("cannot %s %s: requested %s exceeds remaining %s", action, entity, requested, remaining)).
		WithDetails(BalanceDetails{
			TransitionDetails: details,
			Requested:         requested,
			Remaining:         remaining,
		})
}

// ConcurrentModification reports a lost optimistic version race on an entity.
func ConcurrentModification(entity string, entityID fmt.Stringer, expectedVersion int) *Error {
	id := ""
	if entityID != nil {
		id = entityID.String()
	}
	return New(CodeConcurrentModification, fmt.Sprintf("%s %s was modified concurrently", entity, id)).
		WithDetails(map[string]any{
			"entity":           entity,
			"entity_id":        id,
			"expected_version": expectedVersion,
		})
}

// StockUnavailable names the listing that could not satisfy the requested quantity.
func StockUnavailable(listingID fmt.Stringer, requested, available int) *Error {
	id := ""
	if listingID != nil {
		id = listingID.String()
	}
	return New(CodeStockUnavailable, fmt.Sprintf("listing %s has insufficient stock", id)).
		WithDetails(map[string]any{
			"listing_id": id,
			"requested":  requested,
			"available":  available,
		})
}

// TransitionDetailsOf extracts transition details from err when present.
func TransitionDetailsOf(err error) (TransitionDetails, bool) {
	typed := As(err)
	if typed == nil {
		return TransitionDetails{}, false
	}
	switch details := typed.Details().(type) {
	case TransitionDetails:
		return details, true
	case BalanceDetails:
		return details.TransitionDetails, true
	}
	return TransitionDetails{}, false
}
