package model

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ToeaPerKina задаёт число тоа в одной кине.
const ToeaPerKina = 100

// ErrFractionalToea возвращается для сумм точнее одной тоа.
var ErrFractionalToea = errors.New("amount has more than two decimal places")

// ErrAmountOutOfRange возвращается для сумм, не помещающихся в int64 тоа.
var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	hundred = decimal.NewFromInt(ToeaPerKina)
	maxToea = decimal.NewFromInt(math.MaxInt64)
	minToea = decimal.NewFromInt(math.MinInt64)
)

// ToeaFromKina переводит сумму в кинах в целое число тоа без округления.
func ToeaFromKina(kina decimal.Decimal) (int64, error) {
	toea := kina.Mul(hundred)
	if !toea.IsInteger() {
		return 0, ErrFractionalToea
	}
	if toea.GreaterThan(maxToea) || toea.LessThan(minToea) {
		return 0, ErrAmountOutOfRange
	}
	return toea.IntPart(), nil
}

// KinaFromToea переводит тоа в кины для ответов API.
func KinaFromToea(toea int64) decimal.Decimal {
	return decimal.New(toea, -2)
}
