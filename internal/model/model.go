// Package model содержит доменные сущности биллинга WantokJobs.
package model

import "time"

// DefaultCurrency используется, если валюта не указана явно.
const DefaultCurrency = "PGK"

// Role описывает роль пользователя.
type Role string

const (
	RoleJobseeker Role = "jobseeker"
	RoleEmployer  Role = "employer"
	RoleAdmin     Role = "admin"
)

// Valid сообщает, является ли роль известной.
func (r Role) Valid() bool {
	switch r {
	case RoleJobseeker, RoleEmployer, RoleAdmin:
		return true
	}
	return false
}

// User представляет пользователя и его неизменяемую роль.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CreditType описывает вид кредитов.
type CreditType string

const (
	CreditJobPosting      CreditType = "job_posting"
	CreditAIMatching      CreditType = "ai_matching"
	CreditCandidateSearch CreditType = "candidate_search"
	CreditAlert           CreditType = "alert"
)

// EmployerCreditTypes перечисляет виды кредитов работодателя.
var EmployerCreditTypes = []CreditType{CreditJobPosting, CreditAIMatching, CreditCandidateSearch}

// JobseekerCreditTypes перечисляет виды кредитов соискателя.
var JobseekerCreditTypes = []CreditType{CreditAlert}

// Role возвращает роль, которой принадлежит вид кредитов.
func (c CreditType) Role() (Role, bool) {
	switch c {
	case CreditJobPosting, CreditAIMatching, CreditCandidateSearch:
		return RoleEmployer, true
	case CreditAlert:
		return RoleJobseeker, true
	}
	return "", false
}

// CreditTypesFor возвращает виды кредитов для роли.
func CreditTypesFor(role Role) []CreditType {
	switch role {
	case RoleEmployer:
		return EmployerCreditTypes
	case RoleJobseeker:
		return JobseekerCreditTypes
	}
	return nil
}

// FeatureTier описывает уровень функциональности работодателя.
type FeatureTier string

const (
	TierFree         FeatureTier = "free"
	TierBasic        FeatureTier = "basic"
	TierProfessional FeatureTier = "professional"
	TierEnterprise   FeatureTier = "enterprise"
)

// Rank возвращает порядковый номер уровня; неизвестный уровень ранжируется как free.
func (t FeatureTier) Rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierProfessional:
		return 2
	case TierEnterprise:
		return 3
	}
	return 0
}

// Valid сообщает, является ли уровень известным.
func (t FeatureTier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

// TrialFlags содержит флаги пробного периода, общие для обоих профилей.
type TrialFlags struct {
	HasStandardTrialActivated bool       `json:"has_standard_trial_activated"`
	StandardTrialEndDate      *time.Time `json:"standard_trial_end_date,omitempty"`
	HasPremiumIndefiniteTrial bool       `json:"has_premium_indefinite_trial"`
	PremiumTrialOverrideBy    string     `json:"premium_trial_override_by,omitempty"`
}

// EmployerProfile хранит балансы и уровень работодателя.
type EmployerProfile struct {
	UserID                    int64       `json:"user_id"`
	JobPostingCredits         int64       `json:"job_posting_credits"`
	AIMatchingCredits         int64       `json:"ai_matching_credits"`
	CandidateSearchCredits    int64       `json:"candidate_search_credits"`
	FeatureTier               FeatureTier `json:"feature_tier"`
	LastAnnualCreditResetYear *int        `json:"last_annual_credit_reset_year,omitempty"`
	TrialFlags
}

// Balance возвращает баланс работодателя по виду кредитов.
func (p *EmployerProfile) Balance(ct CreditType) (int64, bool) {
	switch ct {
	case CreditJobPosting:
		return p.JobPostingCredits, true
	case CreditAIMatching:
		return p.AIMatchingCredits, true
	case CreditCandidateSearch:
		return p.CandidateSearchCredits, true
	}
	return 0, false
}

// JobseekerProfile хранит баланс оповещений соискателя.
type JobseekerProfile struct {
	UserID                    int64  `json:"user_id"`
	CurrentAlertCredits       int64  `json:"current_alert_credits"`
	AutoApplyEnabled          bool   `json:"auto_apply_enabled"`
	ActivePackageID           *int64 `json:"active_package_id,omitempty"`
	LastAnnualCreditResetYear *int   `json:"last_annual_credit_reset_year,omitempty"`
	TrialFlags
}

// Balance возвращает баланс соискателя по виду кредитов.
func (p *JobseekerProfile) Balance(ct CreditType) (int64, bool) {
	if ct == CreditAlert {
		return p.CurrentAlertCredits, true
	}
	return 0, false
}

// Package описывает покупаемый пакет кредитов.
type Package struct {
	ID                     int64       `json:"id"`
	Slug                   string      `json:"slug"`
	Name                   string      `json:"name"`
	Role                   Role        `json:"role"`
	PriceToea              int64       `json:"price_toea"`
	Currency               string      `json:"currency"`
	JobPostingCredits      int64       `json:"job_posting_credits"`
	AIMatchingCredits      int64       `json:"ai_matching_credits"`
	CandidateSearchCredits int64       `json:"candidate_search_credits"`
	AlertCredits           int64       `json:"alert_credits"`
	FeatureTier            FeatureTier `json:"feature_tier,omitempty"`
	TrialDurationDays      int         `json:"trial_duration_days,omitempty"`
	AutoApplyEnabled       bool        `json:"auto_apply_enabled"`
	Active                 bool        `json:"active"`
	SortOrder              int         `json:"sort_order"`
}

// IsTrial сообщает, является ли пакет пробным.
func (p *Package) IsTrial() bool {
	return p.TrialDurationDays > 0
}

// Grants возвращает ненулевые начисления пакета по видам кредитов в порядке видов роли.
func (p *Package) Grants() []CreditGrant {
	all := []CreditGrant{
		{CreditType: CreditJobPosting, Amount: p.JobPostingCredits},
		{CreditType: CreditAIMatching, Amount: p.AIMatchingCredits},
		{CreditType: CreditCandidateSearch, Amount: p.CandidateSearchCredits},
		{CreditType: CreditAlert, Amount: p.AlertCredits},
	}

	res := make([]CreditGrant, 0, len(all))
	for _, g := range all {
		if g.Amount != 0 {
			res = append(res, g)
		}
	}
	return res
}

// CreditGrant описывает начисление кредитов одного вида.
type CreditGrant struct {
	CreditType CreditType `json:"credit_type"`
	Amount     int64      `json:"amount"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order описывает попытку покупки пакета.
type Order struct {
	ID            int64       `json:"id"`
	UserID        int64       `json:"user_id"`
	PackageID     *int64      `json:"package_id,omitempty"`
	AmountToea    int64       `json:"amount_toea"`
	Currency      string      `json:"currency"`
	Status        OrderStatus `json:"status"`
	InvoiceNumber string      `json:"invoice_number"`
	Notes         string      `json:"notes,omitempty"`
	ApprovedBy    *int64      `json:"approved_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ApprovedAt    *time.Time  `json:"approved_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	RejectedAt    *time.Time  `json:"rejected_at,omitempty"`
}

// Reason тегирует причину движения кредитов.
type Reason string

const (
	ReasonTrialActivation Reason = "trial_activation"
	ReasonPackagePurchase Reason = "package_purchase"
	ReasonConsumed        Reason = "consumed"
	ReasonAnnualReset     Reason = "annual_reset"
	ReasonAdminGrant      Reason = "admin_grant"
	ReasonReferralBonus   Reason = "referral_bonus"
)

// Reference связывает движение с сущностью-причиной.
type Reference struct {
	Type string `json:"reference_type,omitempty"`
	ID   int64  `json:"reference_id,omitempty"`
}

// Типы ссылок, используемые в журнале.
const (
	RefOrder   = "order"
	RefPackage = "package"
	RefJob     = "job"
)

// CreditEntry описывает запрос на изменение баланса.
type CreditEntry struct {
	UserID     int64
	CreditType CreditType
	Amount     int64
	Reason     Reason
	Reference  *Reference
}

// CreditTransaction является неизменяемой строкой журнала кредитов.
type CreditTransaction struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	CreditType    CreditType `json:"credit_type"`
	Amount        int64      `json:"amount"`
	BalanceAfter  int64      `json:"balance_after"`
	Reason        Reason     `json:"reason"`
	ReferenceType string     `json:"reference_type,omitempty"`
	ReferenceID   *int64     `json:"reference_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// JobStatus описывает статус вакансии.
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusClosed JobStatus = "closed"
)

// Job описывает вакансию работодателя в объёме, нужном биллингу.
type Job struct {
	ID             int64     `json:"id"`
	EmployerID     int64     `json:"employer_id"`
	Title          string    `json:"title"`
	Status         JobStatus `json:"status"`
	CreditConsumed bool      `json:"credit_consumed"`
	FreeSlot       bool      `json:"free_slot"`
	CreatedAt      time.Time `json:"created_at"`
}
