// Package validation содержит проверку номеров счетов и референсов пополнения.
package validation

import (
	"strings"
	"time"
	"unicode"
)

const (
	invoicePrefix    = "INV-"
	invoiceDigits    = 10
	depositPrefix    = "WJ"
	depositMinDigits = 6
)

// IsValidLuhn проверяет строку цифр по алгоритму Луна.
func IsValidLuhn(number string) bool {
	if number == "" {
		return false
	}

	sum, ok := luhnSum(number, false)
	if !ok {
		return false
	}
	return sum%10 == 0
}

// LuhnCheckDigit вычисляет контрольную цифру для строки цифр.
func LuhnCheckDigit(payload string) (byte, bool) {
	if payload == "" {
		return 0, false
	}

	sum, ok := luhnSum(payload, true)
	if !ok {
		return 0, false
	}
	return byte('0' + (10-sum%10)%10), true
}

// luhnSum считает сумму Луна; withCheck означает, что контрольная цифра будет дописана справа.
func luhnSum(number string, withCheck bool) (int, bool) {
	sum := 0
	double := withCheck

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return 0, false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum, true
}

// InvoiceNumber собирает номер счёта вида INV-YYYYMMDD-<10 цифр><контрольная цифра>.
// digits дополняется нулями слева или обрезается до 10 цифр.
func InvoiceNumber(day time.Time, digits string) string {
	payload := fitDigits(digits, invoiceDigits)
	check, _ := LuhnCheckDigit(payload)
	return invoicePrefix + day.UTC().Format("20060102") + "-" + payload + string(check)
}

// IsValidInvoiceNumber проверяет формат и контрольную цифру номера счёта.
func IsValidInvoiceNumber(s string) bool {
	rest, ok := strings.CutPrefix(s, invoicePrefix)
	if !ok {
		return false
	}

	date, tail, ok := strings.Cut(rest, "-")
	if !ok || len(tail) != invoiceDigits+1 {
		return false
	}
	if _, err := time.Parse("20060102", date); err != nil {
		return false
	}
	return IsValidLuhn(tail)
}

// DepositReference собирает референс пополнения вида WJ<цифры><контрольная цифра>.
func DepositReference(digits string) string {
	payload := onlyDigits(digits)
	if len(payload) < depositMinDigits {
		payload = fitDigits(payload, depositMinDigits)
	}
	check, _ := LuhnCheckDigit(payload)
	return depositPrefix + payload + string(check)
}

// IsValidDepositReference проверяет формат и контрольную цифру референса пополнения.
// Регистр префикса и пробелы по краям не учитываются: референс вводится клиентом в банке вручную.
func IsValidDepositReference(s string) bool {
	s = NormalizeDepositReference(s)
	rest, ok := strings.CutPrefix(s, depositPrefix)
	if !ok || len(rest) < depositMinDigits+1 {
		return false
	}
	return IsValidLuhn(rest)
}

// NormalizeDepositReference приводит референс к каноническому виду.
func NormalizeDepositReference(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func fitDigits(digits string, n int) string {
	d := onlyDigits(digits)
	if len(d) > n {
		return d[len(d)-n:]
	}
	return strings.Repeat("0", n-len(d)) + d
}
