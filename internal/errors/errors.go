package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries an error code, an operator-facing message, and the text
// shown to the participant. Expected control-flow outcomes (validation,
// rate limit, gates, expired deadlines) are low severity; only store and
// delivery failures are operational.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError reports rejected form input. The session stays on the
// same step and the user may retry.
func NewValidationError(reason string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     fmt.Sprintf("validation rejected: %s", reason),
		UserMessage: fmt.Sprintf("❌ %s\nПопробуйте еще раз:", reason),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewRateLimitError reports that the daily per-commodity offer cap is reached.
func NewRateLimitError(commodity string, limit int) *AppError {
	return &AppError{
		Code:        "E110",
		Message:     fmt.Sprintf("daily offer limit reached: commodity=%s limit=%d", commodity, limit),
		UserMessage: fmt.Sprintf("❌ Лимит предложений на сегодня исчерпан: не более %d предложений по металлу «%s» в день", limit, commodity),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewGateClosedError reports that offer submission is currently not accepted.
func NewGateClosedError(reason string) *AppError {
	return &AppError{
		Code:        "E120",
		Message:     fmt.Sprintf("offer gate closed: %s", reason),
		UserMessage: fmt.Sprintf("❌ %s", reason),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewDeadlineExpiredError reports input arriving after the response window.
func NewDeadlineExpiredError() *AppError {
	return &AppError{
		Code:        "E130",
		Message:     "response window deadline expired",
		UserMessage: "⌛ Время для предоставления котировок вышло!",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewStoreError wraps a record store read or write failure. The session is
// left intact so the user may retry the same step.
func NewStoreError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("record store error: %s", underlyingMsg),
		UserMessage: "❌ Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewDeliveryError wraps a transport send failure for a single participant
// during broadcast fan-out. It never aborts the batch.
func NewDeliveryError(telegramID int64, cause error) *AppError {
	return &AppError{
		Code:        "E210",
		Message:     fmt.Sprintf("delivery failure: telegram_id=%d", telegramID),
		UserMessage: "",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewStateError reports an operation that is impossible in the current
// conversation state.
func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "Операция невозможна в текущем состоянии",
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       nil,
	}
}
