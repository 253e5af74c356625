package process

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fizko/internal/models"
)

func setupSegmentationTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Company{}, &models.TaxPayer{}, &models.CompanySegment{},
		&models.ProcessAssignmentRule{}, &models.ProcessTemplateConfig{},
		&models.ProcessTemplateTask{}, &models.Process{}, &models.Task{},
	))
	return db
}

func mustMarshal(t *testing.T, v any) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func intPtr(i int) *int { return &i }

func TestEvaluateSegment_FirstMatchWinsByOrder(t *testing.T) {
	db := setupSegmentationTestDB(t)

	broad := models.CompanySegment{Name: "broad", Order: 2, IsActive: true, Criteria: mustMarshal(t, Criteria{})}
	narrow := models.CompanySegment{Name: "small-biz", Order: 1, IsActive: true,
		Criteria: mustMarshal(t, Criteria{Size: &IntRange{Max: intPtr(10)}})}
	require.NoError(t, db.Create(&broad).Error)
	require.NoError(t, db.Create(&narrow).Error)

	company := models.Company{Name: "Acme", TaxID: "11111111-1", EmployeeCount: 5}
	taxpayer := models.TaxPayer{TaxID: "11111111-1", BusinessName: "Acme"}

	segment, err := EvaluateSegment(db, company, taxpayer)
	require.NoError(t, err)
	require.NotNil(t, segment)
	assert.Equal(t, "small-biz", segment.Name)
}

func TestEvaluateSegment_NoMatchReturnsNil(t *testing.T) {
	db := setupSegmentationTestDB(t)

	segment := models.CompanySegment{Name: "large", Order: 1, IsActive: true,
		Criteria: mustMarshal(t, Criteria{Size: &IntRange{Min: intPtr(500)}})}
	require.NoError(t, db.Create(&segment).Error)

	company := models.Company{Name: "Acme", TaxID: "22222222-2", EmployeeCount: 5}
	taxpayer := models.TaxPayer{TaxID: "22222222-2"}

	got, err := EvaluateSegment(db, company, taxpayer)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatches_ANDsAllPresentPredicates(t *testing.T) {
	segment := models.CompanySegment{Criteria: mustMarshal(t, Criteria{
		Size:             &IntRange{Min: intPtr(1), Max: intPtr(50)},
		EconomicActivity: []string{"retail"},
	})}

	company := models.Company{EmployeeCount: 20, EconomicActivity: "retail"}
	taxpayer := models.TaxPayer{}
	assert.True(t, matches(segment, company, taxpayer))

	company.EconomicActivity = "mining"
	assert.False(t, matches(segment, company, taxpayer), "one failing predicate rejects the whole segment")
}

func TestMatches_TaxRegimePredicate(t *testing.T) {
	segment := models.CompanySegment{Criteria: mustMarshal(t, Criteria{TaxRegime: []string{"f3323_quarterly"}})}

	quarterly := models.TaxPayer{SettingProcesos: models.SettingProcesos{F3323Quarterly: true}}
	monthly := models.TaxPayer{SettingProcesos: models.SettingProcesos{F29Monthly: true}}

	assert.True(t, matches(segment, models.Company{}, quarterly))
	assert.False(t, matches(segment, models.Company{}, monthly))
}

func TestMatches_CustomConditionRequiresF3323(t *testing.T) {
	segment := models.CompanySegment{Criteria: mustMarshal(t, Criteria{CustomConditions: []string{"requires_f3323"}})}

	yes := models.TaxPayer{SettingProcesos: models.SettingProcesos{F3323Quarterly: true}}
	no := models.TaxPayer{}

	assert.True(t, matches(segment, models.Company{}, yes))
	assert.False(t, matches(segment, models.Company{}, no))
}

func TestMatches_UnknownCustomConditionNeverHolds(t *testing.T) {
	segment := models.CompanySegment{Criteria: mustMarshal(t, Criteria{CustomConditions: []string{"some_future_tag"}})}
	assert.False(t, matches(segment, models.Company{}, models.TaxPayer{}))
}

func TestMatches_MalformedCriteriaIsNonMatchNotFatal(t *testing.T) {
	segment := models.CompanySegment{Criteria: []byte(`{not-json`)}
	assert.False(t, matches(segment, models.Company{}, models.TaxPayer{}))
}

func TestMatches_EmptyCriteriaVacuouslyMatches(t *testing.T) {
	segment := models.CompanySegment{Criteria: nil}
	assert.True(t, matches(segment, models.Company{}, models.TaxPayer{}))
}

func TestAssignSegment_PersistsSegmentIDAndAppliesRules(t *testing.T) {
	db := setupSegmentationTestDB(t)

	factory := ProcessTemplateFactory{}
	config, blueprints := factory.F29Monthly()
	template := config
	require.NoError(t, db.Create(&template).Error)
	for _, tt := range toTemplateTasks(template.ID, blueprints) {
		require.NoError(t, db.Create(&tt).Error)
	}

	segment := models.CompanySegment{Name: "all", Order: 1, IsActive: true, Criteria: mustMarshal(t, Criteria{})}
	require.NoError(t, db.Create(&segment).Error)
	rule := models.ProcessAssignmentRule{SegmentID: segment.ID, TemplateID: template.ID, IsActive: true, AutoApply: true}
	require.NoError(t, db.Create(&rule).Error)

	company := models.Company{Name: "Acme", TaxID: "33333333-3"}
	require.NoError(t, db.Create(&company).Error)
	taxpayer := models.TaxPayer{CompanyID: company.ID, TaxID: "33333333-3", BusinessName: "Acme"}
	require.NoError(t, db.Create(&taxpayer).Error)

	got, err := AssignSegment(db, company, taxpayer, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "all", got.Name)

	var reloaded models.Company
	require.NoError(t, db.First(&reloaded, "id = ?", company.ID).Error)
	require.NotNil(t, reloaded.SegmentID)
	assert.Equal(t, segment.ID, *reloaded.SegmentID)

	var processCount int64
	db.Model(&models.Process{}).Where("company_id = ?", company.ID).Count(&processCount)
	assert.EqualValues(t, 1, processCount)
}

func TestAssignProcessesByRules_SkipsNonAutoApplyRules(t *testing.T) {
	db := setupSegmentationTestDB(t)

	factory := ProcessTemplateFactory{}
	manualConfig, manualBlueprints := factory.F29Monthly()
	require.NoError(t, db.Create(&manualConfig).Error)
	for _, tt := range toTemplateTasks(manualConfig.ID, manualBlueprints) {
		require.NoError(t, db.Create(&tt).Error)
	}
	autoConfig, autoBlueprints := factory.F3323Quarterly()
	require.NoError(t, db.Create(&autoConfig).Error)
	for _, tt := range toTemplateTasks(autoConfig.ID, autoBlueprints) {
		require.NoError(t, db.Create(&tt).Error)
	}

	segment := models.CompanySegment{Name: "all", Order: 1, IsActive: true, Criteria: mustMarshal(t, Criteria{})}
	require.NoError(t, db.Create(&segment).Error)

	manualRule := models.ProcessAssignmentRule{SegmentID: segment.ID, TemplateID: manualConfig.ID, IsActive: true, AutoApply: false}
	require.NoError(t, db.Create(&manualRule).Error)
	autoRule := models.ProcessAssignmentRule{SegmentID: segment.ID, TemplateID: autoConfig.ID, IsActive: true, AutoApply: true, Priority: 10}
	require.NoError(t, db.Create(&autoRule).Error)

	company := models.Company{Name: "Acme", TaxID: "34343434-3"}
	require.NoError(t, db.Create(&company).Error)
	taxpayer := models.TaxPayer{CompanyID: company.ID, TaxID: "34343434-3", BusinessName: "Acme"}
	require.NoError(t, db.Create(&taxpayer).Error)

	require.NoError(t, AssignProcessesByRules(db, company, taxpayer, segment.ID))

	var processes []models.Process
	require.NoError(t, db.Where("company_id = ?", company.ID).Find(&processes).Error)
	require.Len(t, processes, 1, "only the auto_apply rule should materialise a process")
	assert.Equal(t, models.ProcessTypeF3323, processes[0].ProcessType)
}

func TestAssignProcessesByRules_ConditionsGateMaterialisation(t *testing.T) {
	db := setupSegmentationTestDB(t)

	factory := ProcessTemplateFactory{}
	config, blueprints := factory.F3323Quarterly()
	require.NoError(t, db.Create(&config).Error)
	for _, tt := range toTemplateTasks(config.ID, blueprints) {
		require.NoError(t, db.Create(&tt).Error)
	}

	segment := models.CompanySegment{Name: "all", Order: 1, IsActive: true, Criteria: mustMarshal(t, Criteria{})}
	require.NoError(t, db.Create(&segment).Error)

	rule := models.ProcessAssignmentRule{
		SegmentID: segment.ID, TemplateID: config.ID, IsActive: true, AutoApply: true,
		Conditions: mustMarshal(t, Criteria{TaxRegime: []string{"f3323_quarterly"}}),
	}
	require.NoError(t, db.Create(&rule).Error)

	company := models.Company{Name: "Acme", TaxID: "35353535-3"}
	require.NoError(t, db.Create(&company).Error)

	monthly := models.TaxPayer{CompanyID: company.ID, TaxID: "35353535-3", SettingProcesos: models.SettingProcesos{F29Monthly: true}}
	require.NoError(t, db.Create(&monthly).Error)
	require.NoError(t, AssignProcessesByRules(db, company, monthly, segment.ID))

	var countBefore int64
	db.Model(&models.Process{}).Where("company_id = ?", company.ID).Count(&countBefore)
	assert.EqualValues(t, 0, countBefore, "rule's conditions don't hold: no process materialised")

	quarterly := models.TaxPayer{CompanyID: company.ID, TaxID: "36363636-3", SettingProcesos: models.SettingProcesos{F3323Quarterly: true}}
	require.NoError(t, db.Create(&quarterly).Error)
	require.NoError(t, AssignProcessesByRules(db, company, quarterly, segment.ID))

	var countAfter int64
	db.Model(&models.Process{}).Where("company_id = ?", company.ID).Count(&countAfter)
	assert.EqualValues(t, 1, countAfter, "rule's conditions hold: process materialised")
}
