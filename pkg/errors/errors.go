package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation                 Code = "VALIDATION_ERROR"
	CodeNotFound                   Code = "NOT_FOUND"
	CodeConflict                   Code = "CONFLICT"
	CodeStateConflict              Code = "STATE_CONFLICT"
	CodeEmptyCart                  Code = "EMPTY_CART"
	CodeStockUnavailable           Code = "STOCK_UNAVAILABLE"
	CodePaymentNotCaptured         Code = "PAYMENT_NOT_CAPTURED"
	CodeIntentNotMutable           Code = "INTENT_NOT_MUTABLE"
	CodePartialFulfillmentConflict Code = "PARTIAL_FULFILLMENT_CONFLICT"
	CodeRefundNotEligible          Code = "REFUND_NOT_ELIGIBLE"
	CodeConcurrentModification     Code = "CONCURRENT_MODIFICATION"
	CodeInternal                   Code = "INTERNAL_ERROR"
	CodeDependency                 Code = "DEPENDENCY_ERROR"
)

// Family groups codes the caller handles the same way.
type Family string

const (
	FamilyValidation      Family = "validation"
	FamilyNotFound        Family = "not_found"
	FamilyConflict        Family = "conflict"
	FamilyStateTransition Family = "state_transition"
	FamilyStock           Family = "stock"
	FamilyConcurrency     Family = "concurrency"
	FamilyInfrastructure  Family = "infrastructure"
)

type Metadata struct {
	Family         Family
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Family:         FamilyValidation,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeEmptyCart: {
		Family:         FamilyValidation,
		PublicMessage:  "cart is empty",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		Family:        FamilyNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		Family:        FamilyConflict,
		PublicMessage: "conflict detected",
	},
	CodeStateConflict: {
		Family:         FamilyStateTransition,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodePaymentNotCaptured: {
		Family:         FamilyStateTransition,
		PublicMessage:  "payment not captured",
		DetailsAllowed: true,
	},
	CodeIntentNotMutable: {
		Family:         FamilyStateTransition,
		PublicMessage:  "payment intent is final",
		DetailsAllowed: true,
	},
	CodePartialFulfillmentConflict: {
		Family:         FamilyStateTransition,
		PublicMessage:  "order is partially fulfilled",
		DetailsAllowed: true,
	},
	CodeRefundNotEligible: {
		Family:         FamilyStateTransition,
		PublicMessage:  "refund not eligible",
		DetailsAllowed: true,
	},
	CodeStockUnavailable: {
		Family:         FamilyStock,
		PublicMessage:  "stock unavailable",
		DetailsAllowed: true,
	},
	CodeConcurrentModification: {
		Family:         FamilyConcurrency,
		Retryable:      true,
		PublicMessage:  "resource modified concurrently",
		DetailsAllowed: true,
	},
	CodeInternal: {
		Family:        FamilyInfrastructure,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		Family:         FamilyInfrastructure,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// IsStateTransition reports whether err belongs to the state-transition family.
func IsStateTransition(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Family == FamilyStateTransition
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Retryable
}
