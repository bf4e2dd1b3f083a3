package refunds

import "github.com/angelmondragon/bazaar-backend/pkg/enums"

var refundTransitions = map[enums.RefundStatus][]enums.RefundStatus{
	enums.RefundStatusRequested:  {enums.RefundStatusProcessing, enums.RefundStatusRejected},
	enums.RefundStatusProcessing: {enums.RefundStatusCompleted},
}

// CanTransition reports whether a refund may move from one status to another.
func CanTransition(from, to enums.RefundStatus) bool {
	for _, next := range refundTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func refundAction(to enums.RefundStatus) string {
	switch to {
	case enums.RefundStatusProcessing, enums.RefundStatusCompleted:
		return "approve"
	case enums.RefundStatusRejected:
		return "reject"
	}
	return "move to " + to.String()
}
