package repository

import "errors"

// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProfileNotFound возвращается, если у пользователя нет профиля его роли.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrPackageNotFound возвращается, если пакет не найден.
	ErrPackageNotFound = errors.New("package not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrJobNotFound возвращается, если вакансия не найдена.
	ErrJobNotFound = errors.New("job not found")
	// ErrInsufficientCredits возвращается условным списанием при нулевом балансе.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrNegativeBalance возвращается, если запись нарушила бы неотрицательность баланса.
	ErrNegativeBalance = errors.New("balance constraint violated")
	// ErrStatusConflict возвращается, если статус строки изменился между чтением и записью.
	ErrStatusConflict = errors.New("status changed concurrently")
	// ErrDepositNotFound возвращается, если намерение пополнения не найдено.
	ErrDepositNotFound = errors.New("deposit intent not found")
	// ErrHoldNotFound возвращается, если резерв не найден.
	ErrHoldNotFound = errors.New("hold not found")
	// ErrRefundNotFound возвращается, если возврат не найден.
	ErrRefundNotFound = errors.New("refund not found")
	// ErrWalletTransactionNotFound возвращается, если движение кошелька не найдено.
	ErrWalletTransactionNotFound = errors.New("wallet transaction not found")
	// ErrDuplicateReference возвращается при коллизии номера счёта или ссылки пополнения.
	ErrDuplicateReference = errors.New("duplicate reference")
)
