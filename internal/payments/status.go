package payments

import "github.com/angelmondragon/bazaar-backend/pkg/enums"

var intentTransitions = map[enums.PaymentIntentStatus][]enums.PaymentIntentStatus{
	enums.PaymentIntentStatusCreated: {
		enums.PaymentIntentStatusCaptured,
		enums.PaymentIntentStatusFailed,
		enums.PaymentIntentStatusCancelled,
	},
	enums.PaymentIntentStatusFailed: {
		enums.PaymentIntentStatusCancelled,
	},
}

// CanTransition reports whether an intent may move from one status to another.
// A failed intent never captures; a fresh intent must be created instead.
func CanTransition(from, to enums.PaymentIntentStatus) bool {
	for _, next := range intentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func intentAction(to enums.PaymentIntentStatus) string {
	switch to {
	case enums.PaymentIntentStatusCaptured:
		return "capture"
	case enums.PaymentIntentStatusFailed:
		return "fail"
	case enums.PaymentIntentStatusCancelled:
		return "cancel"
	}
	return "move to " + to.String()
}
