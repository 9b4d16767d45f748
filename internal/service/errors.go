package service

import "errors"

// Ошибки политики биллинга. Ошибки хранилища (NotFound, InsufficientCredits и т.д.)
// объявлены в пакете repository и пробрасываются без изменений.
var (
	ErrInvalidCreditType     = errors.New("credit type does not belong to user role")
	ErrInvalidRole           = errors.New("invalid role")
	ErrTrialAlreadyUsed      = errors.New("standard trial already used")
	ErrOrderAlreadyCompleted = errors.New("order already completed")
	ErrOrderAlreadyRejected  = errors.New("order already rejected")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrPackageUnavailable    = errors.New("package is not available for purchase")
	ErrForbidden             = errors.New("resource belongs to another user")
	ErrInvalidReference      = errors.New("invalid deposit reference")
	ErrJobClosed             = errors.New("job already closed")
	ErrJobTitleRequired      = errors.New("job title is required")
	ErrPostingNotAllowed     = errors.New("no credits to post a job")
	ErrInsufficientFunds     = errors.New("insufficient wallet funds")
	ErrRefundExceedsAmount   = errors.New("refund exceeds refundable amount")
	ErrNotRefundable         = errors.New("transaction is not refundable")
	ErrAlreadySettled        = errors.New("already settled")
	ErrInvalidStatus         = errors.New("invalid status")
)
