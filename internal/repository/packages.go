package repository

import "github.com/nwakan/wantok-jobs-sub002/internal/model"

// DefaultPackages содержит каталог пакетов, создаваемый при запуске, если его ещё нет.
// Цены указаны в тоа (1 кина = 100 тоа).
var DefaultPackages = []model.Package{
	{
		Slug: "employer-trial", Name: "Employer free trial", Role: model.RoleEmployer,
		JobPostingCredits: 3, AIMatchingCredits: 5, CandidateSearchCredits: 5,
		FeatureTier: model.TierBasic, TrialDurationDays: 14, Active: true, SortOrder: 0,
	},
	{
		Slug: "employer-starter", Name: "Starter", Role: model.RoleEmployer, PriceToea: 15000,
		JobPostingCredits: 5, AIMatchingCredits: 10, CandidateSearchCredits: 10,
		FeatureTier: model.TierBasic, Active: true, SortOrder: 10,
	},
	{
		Slug: "employer-professional", Name: "Professional", Role: model.RoleEmployer, PriceToea: 45000,
		JobPostingCredits: 20, AIMatchingCredits: 50, CandidateSearchCredits: 50,
		FeatureTier: model.TierProfessional, Active: true, SortOrder: 20,
	},
	{
		Slug: "employer-enterprise", Name: "Enterprise", Role: model.RoleEmployer, PriceToea: 120000,
		JobPostingCredits: 100, AIMatchingCredits: 200, CandidateSearchCredits: 200,
		FeatureTier: model.TierEnterprise, Active: true, SortOrder: 30,
	},
	{
		Slug: "jobseeker-trial", Name: "Jobseeker free trial", Role: model.RoleJobseeker,
		AlertCredits: 20, TrialDurationDays: 14, Active: true, SortOrder: 0,
	},
	{
		Slug: "jobseeker-alerts", Name: "Job alerts", Role: model.RoleJobseeker, PriceToea: 2000,
		AlertCredits: 50, Active: true, SortOrder: 10,
	},
	{
		Slug: "jobseeker-auto-apply", Name: "Auto apply", Role: model.RoleJobseeker, PriceToea: 5000,
		AlertCredits: 100, AutoApplyEnabled: true, Active: true, SortOrder: 20,
	},
}
