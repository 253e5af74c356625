/*
Package reports - offline report generation (A6)

ExportSyncLogWorkbook renders one sheet per document type for the documents
an ingestion run touched, and ExportDeadlineDigest renders a one-page PDF of
upcoming/overdue deadlines. Both read the same domain data the REST layer
would otherwise serve, so operators have an offline artifact when that
façade is unavailable.
*/
package reports

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"fizko/internal/models"
)

// ExportSyncLogWorkbook builds an .xlsx with one sheet per DocumentType,
// covering every Document owned by the sync log's taxpayer within its
// period range — the sync log itself carries no direct document FK, so the
// (taxpayer, period_from, period_to) window it recorded is the join key.
func ExportSyncLogWorkbook(db *gorm.DB, syncLogID uuid.UUID) ([]byte, error) {
	var syncLog models.SIISyncLog
	if err := db.First(&syncLog, "id = ?", syncLogID).Error; err != nil {
		return nil, fmt.Errorf("load sync log: %w", err)
	}

	var documents []models.Document
	err := db.Where("taxpayer_id = ? AND period >= ? AND period <= ?",
		syncLog.TaxpayerID, syncLog.PeriodFrom, syncLog.PeriodTo).
		Order("period asc, issue_date asc").
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	byType := map[uuid.UUID][]models.Document{}
	var typeOrder []uuid.UUID
	for _, doc := range documents {
		if _, seen := byType[doc.DocumentTypeID]; !seen {
			typeOrder = append(typeOrder, doc.DocumentTypeID)
		}
		byType[doc.DocumentTypeID] = append(byType[doc.DocumentTypeID], doc)
	}

	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"Folio", "Period", "Direction", "Counterparty Tax ID", "Counterparty Name", "Issue Date", "Net", "Tax", "Total"}

	firstSheet := true
	for _, typeID := range typeOrder {
		var docType models.DocumentType
		sheetName := typeID.String()[:8]
		if err := db.First(&docType, "id = ?", typeID).Error; err == nil {
			sheetName = sanitizeSheetName(docType.Name)
		}

		if firstSheet {
			f.SetSheetName("Sheet1", sheetName)
			firstSheet = false
		} else {
			if _, err := f.NewSheet(sheetName); err != nil {
				return nil, fmt.Errorf("create sheet %q: %w", sheetName, err)
			}
		}

		for i, header := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheetName, cell, header)
		}

		row := 2
		for _, doc := range byType[typeID] {
			f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), doc.Folio)
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), doc.Period)
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(doc.Direction))
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), doc.CounterpartyTaxID)
			f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), doc.CounterpartyName)
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), doc.IssueDate.Format("2006-01-02"))
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), doc.NetAmount.String())
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), doc.TaxAmount.String())
			f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), doc.TotalAmount.String())
			row++
		}
	}

	if firstSheet {
		// No documents at all: keep the default empty sheet so the file opens cleanly.
		f.SetSheetName("Sheet1", "No data")
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buffer.Bytes(), nil
}

func sanitizeSheetName(name string) string {
	// excelize sheet names cap at 31 chars and reject []:*?/\
	runes := []rune(name)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "Sheet"
	}
	return string(out)
}
