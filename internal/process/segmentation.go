/*
Package process - Segmentation & assignment (C11)

EvaluateSegment loads every active CompanySegment ordered by Order and
returns the first one whose criteria predicates all hold (AND of every
present predicate) for a company. Unknown predicate keys evaluate to false;
a predicate that errors while evaluating (e.g. malformed criteria JSON)
makes the whole segment a non-match rather than aborting the scan.
*/
package process

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
)

// IntRange bounds an integer predicate (employee count, revenue).
type IntRange struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

// Int64Range bounds an int64 predicate (annual revenue).
type Int64Range struct {
	Min *int64 `json:"min"`
	Max *int64 `json:"max"`
}

// Criteria is the decoded shape of CompanySegment.Criteria.
type Criteria struct {
	Size             *IntRange   `json:"size,omitempty"`
	EconomicActivity []string    `json:"economic_activity,omitempty"`
	TaxRegime        []string    `json:"tax_regime,omitempty"`
	AnnualRevenue    *Int64Range `json:"annual_revenue,omitempty"`
	CustomConditions []string    `json:"custom_conditions,omitempty"`
}

// EvaluateSegment picks the first active CompanySegment (ordered by Order)
// whose criteria match company/taxpayer, or nil if none match.
func EvaluateSegment(db *gorm.DB, company models.Company, taxpayer models.TaxPayer) (*models.CompanySegment, error) {
	var segments []models.CompanySegment
	if err := db.Where("is_active = ?", true).Order("\"order\" asc").Find(&segments).Error; err != nil {
		return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	for _, segment := range segments {
		if matches(segment, company, taxpayer) {
			s := segment
			return &s, nil
		}
	}
	return nil, nil
}

func matches(segment models.CompanySegment, company models.Company, taxpayer models.TaxPayer) bool {
	return criteriaHold(segment.Criteria, company, taxpayer)
}

// criteriaHold decodes raw (a Criteria document, or empty) and evaluates it
// against company/taxpayer. Empty raw vacuously matches; malformed JSON is a
// non-match rather than a fatal error, shared by segment matching (C11) and
// ProcessAssignmentRule.Conditions evaluation.
func criteriaHold(raw datatypes.JSON, company models.Company, taxpayer models.TaxPayer) bool {
	if len(raw) == 0 {
		return true
	}
	var criteria Criteria
	if err := json.Unmarshal(raw, &criteria); err != nil {
		return false
	}

	if criteria.Size != nil {
		if !matchSize(*criteria.Size, company.EmployeeCount) {
			return false
		}
	}
	if len(criteria.EconomicActivity) > 0 {
		if !contains(criteria.EconomicActivity, company.EconomicActivity) {
			return false
		}
	}
	if len(criteria.TaxRegime) > 0 {
		if !contains(criteria.TaxRegime, taxRegimeOf(taxpayer)) {
			return false
		}
	}
	if criteria.AnnualRevenue != nil {
		if !matchRevenue(*criteria.AnnualRevenue, company.AnnualRevenue) {
			return false
		}
	}
	if len(criteria.CustomConditions) > 0 {
		for _, tag := range criteria.CustomConditions {
			if !customConditionHolds(tag, taxpayer) {
				return false
			}
		}
	}
	return true
}

func matchSize(size IntRange, employeeCount int) bool {
	if size.Min != nil && employeeCount < *size.Min {
		return false
	}
	if size.Max != nil && employeeCount > *size.Max {
		return false
	}
	return true
}

func matchRevenue(revenue Int64Range, annualRevenue int64) bool {
	if revenue.Min != nil && annualRevenue < *revenue.Min {
		return false
	}
	if revenue.Max != nil && annualRevenue > *revenue.Max {
		return false
	}
	return true
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// taxRegimeOf infers a taxpayer's regime from its setting_procesos flags:
// f29_monthly implies the "f29_monthly" regime, f3323_quarterly implies
// "f3323_quarterly".
func taxRegimeOf(taxpayer models.TaxPayer) string {
	if taxpayer.SettingProcesos.F3323Quarterly {
		return "f3323_quarterly"
	}
	if taxpayer.SettingProcesos.F29Monthly {
		return "f29_monthly"
	}
	return ""
}

// customConditionHolds recognizes the closed set of custom_conditions tags.
func customConditionHolds(tag string, taxpayer models.TaxPayer) bool {
	switch tag {
	case "requires_f3323":
		return taxpayer.SettingProcesos.F3323Quarterly
	default:
		return false
	}
}

// AssignSegment evaluates and persists the matching segment on the
// company. If autoApply is set, it also runs AssignProcessesByRules.
func AssignSegment(db *gorm.DB, company models.Company, taxpayer models.TaxPayer, autoApply bool) (*models.CompanySegment, error) {
	segment, err := EvaluateSegment(db, company, taxpayer)
	if err != nil {
		return nil, err
	}
	if segment != nil {
		company.SegmentID = &segment.ID
		if err := db.Model(&models.Company{}).Where("id = ?", company.ID).Update("segment_id", segment.ID).Error; err != nil {
			return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
		}
	}
	if autoApply && segment != nil {
		if err := AssignProcessesByRules(db, company, taxpayer, segment.ID); err != nil {
			return segment, err
		}
	}
	return segment, nil
}

// AssignProcessesByRules materialises a Process for every active,
// auto-apply ProcessAssignmentRule bound to segmentID whose conditions hold,
// evaluated in priority-desc order.
func AssignProcessesByRules(db *gorm.DB, company models.Company, taxpayer models.TaxPayer, segmentID uuid.UUID) error {
	var rules []models.ProcessAssignmentRule
	if err := db.Where("segment_id = ? AND is_active = ? AND auto_apply = ?", segmentID, true, true).
		Order("priority desc").Find(&rules).Error; err != nil {
		return fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	for _, rule := range rules {
		if !criteriaHold(rule.Conditions, company, taxpayer) {
			continue
		}
		var template models.ProcessTemplateConfig
		if err := db.Preload("Tasks").First(&template, "id = ?", rule.TemplateID).Error; err != nil {
			continue // unresolvable template: skip this rule, keep the run alive
		}
		if _, err := ApplyTemplate(db, template, company, taxpayer, nil); err != nil {
			continue
		}
	}
	return nil
}
