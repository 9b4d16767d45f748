// Package metrics содержит prometheus-метрики биллинга.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CreditsGranted считает начисленные кредиты по виду и причине.
var CreditsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "credits",
	Name:      "granted_total",
	Help:      "Total credits granted by credit type and reason.",
}, []string{"credit_type", "reason"})

// CreditsConsumed считает списанные кредиты.
var CreditsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "credits",
	Name:      "consumed_total",
	Help:      "Total credits consumed by credit type.",
}, []string{"credit_type"})

// TrialConsumptions считает использования функций без списания во время пробного периода.
var TrialConsumptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "credits",
	Name:      "trial_uses_total",
	Help:      "Total feature uses covered by an active trial.",
}, []string{"credit_type"})

// InsufficientCredits считает отказы из-за нулевого баланса.
var InsufficientCredits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "credits",
	Name:      "insufficient_total",
	Help:      "Total consumption attempts denied for insufficient credits.",
}, []string{"credit_type"})

var Orders = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "orders",
	Name:      "total",
	Help:      "Total orders by outcome.",
}, []string{"outcome"})

// AnnualResetProfiles считает профили, обработанные ежегодным сбросом.
var AnnualResetProfiles = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "reset",
	Name:      "profiles_total",
	Help:      "Total profiles whose credits were reset by the annual job.",
}, []string{"role"})

// WalletMovements считает движения по кошелькам.
var WalletMovements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "wallet",
	Name:      "movements_total",
	Help:      "Total wallet movements by type.",
}, []string{"type"})

// WalletToea суммирует объём движений кошельков в тоа.
var WalletToea = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "wallet",
	Name:      "toea_total",
	Help:      "Total absolute toea moved through wallets by movement type.",
}, []string{"type"})

// BankFeedPolls считает опросы банковской ленты по результату.
var BankFeedPolls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wantokjobs",
	Subsystem: "bankfeed",
	Name:      "polls_total",
	Help:      "Total bank feed polls by result.",
}, []string{"result"})
