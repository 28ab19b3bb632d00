// Package errors provides severity-aware error types for the pricing engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// EngineError is a structured error with context.
type EngineError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	ProductID   string   `json:"product_id,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *EngineError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("[%s] %s: %s (product: %s)", e.Severity, e.Code, e.Message, e.ProductID)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Error codes
const (
	ErrCodeStrategyNotFound     = "STRATEGY_NOT_FOUND"
	ErrCodeEvaluationFailed     = "EVALUATION_FAILED"
	ErrCodeConstraintInfeasible = "CONSTRAINT_INFEASIBLE"
	ErrCodeModelUnavailable     = "MODEL_UNAVAILABLE"
	ErrCodeInvalidContext       = "INVALID_CONTEXT"
	ErrCodeConfigLoad           = "CONFIG_LOAD_FAILED"
	ErrCodeAuditWrite           = "AUDIT_WRITE_FAILED"
)

// NewStrategyNotFoundError reports that no active or default strategy
// exists for the tenant. Recoverable: the evaluation degrades to a failed
// result that keeps the current price.
func NewStrategyNotFoundError(strategyID string) *EngineError {
	msg := "no default pricing strategy configured"
	if strategyID != "" {
		msg = fmt.Sprintf("no active pricing strategy with id %s", strategyID)
	}
	return &EngineError{
		Code:        ErrCodeStrategyNotFound,
		Message:     msg,
		Severity:    SeverityError,
		Recoverable: true,
	}
}

// NewConstraintInfeasibleError reports that the optimizer's margin floor
// exceeds the price ceiling: no compliant price exists, so no price is
// returned at all.
func NewConstraintInfeasibleError(floor, maxPrice string) *EngineError {
	return &EngineError{
		Code:        ErrCodeConstraintInfeasible,
		Message:     fmt.Sprintf("margin floor %s exceeds maximum price %s", floor, maxPrice),
		Severity:    SeverityError,
		Recoverable: false,
	}
}

// NewModelUnavailableError reports that no active default model exists for
// the requested role.
func NewModelUnavailableError(role string) *EngineError {
	return &EngineError{
		Code:        ErrCodeModelUnavailable,
		Message:     fmt.Sprintf("no active model for type: %s", role),
		Severity:    SeverityWarning,
		Recoverable: true,
	}
}

// NewInvalidContextError reports a context that violates its invariants.
func NewInvalidContextError(productID string, cause error) *EngineError {
	return &EngineError{
		Code:        ErrCodeInvalidContext,
		Message:     cause.Error(),
		Severity:    SeverityError,
		ProductID:   productID,
		Recoverable: false,
	}
}

func hasCode(err error, code string) bool {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsStrategyNotFound reports whether err is a strategy-not-found error.
func IsStrategyNotFound(err error) bool { return hasCode(err, ErrCodeStrategyNotFound) }

// IsConstraintInfeasible reports whether err means no compliant price exists.
func IsConstraintInfeasible(err error) bool { return hasCode(err, ErrCodeConstraintInfeasible) }

// IsModelUnavailable reports whether err means a model role has no active default.
func IsModelUnavailable(err error) bool { return hasCode(err, ErrCodeModelUnavailable) }
