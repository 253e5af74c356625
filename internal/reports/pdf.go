package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"gorm.io/gorm"

	"fizko/internal/models"
)

// ExportDeadlineDigest renders a one-page PDF listing every active/paused
// Process classified overdue/urgent/reminder as of now, grouped by
// severity — the same data the deadline monitor (C15) would otherwise only
// emit onto its alert channel.
func ExportDeadlineDigest(db *gorm.DB, now time.Time) ([]byte, error) {
	var processes []models.Process
	err := db.Where("status IN ?", []models.ProcessStatus{models.ProcessStatusActive, models.ProcessStatusPaused}).
		Order("due_date asc").
		Find(&processes).Error
	if err != nil {
		return nil, fmt.Errorf("load processes: %w", err)
	}

	type row struct {
		process  models.Process
		severity models.AlertSeverity
	}
	var rows []row
	for _, p := range processes {
		severity, ok := classify(p.DueDate, now)
		if !ok {
			continue
		}
		rows = append(rows, row{process: p, severity: severity})
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFillColor(30, 58, 138)
	pdf.Rect(0, 0, 210, 25, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 16)
	pdf.SetXY(10, 7)
	pdf.Cell(190, 10, "RESUMEN DE VENCIMIENTOS")
	pdf.SetFont("Arial", "", 10)
	pdf.SetXY(10, 16)
	pdf.Cell(190, 6, fmt.Sprintf("Generado: %s", now.Format("02/01/2006 15:04")))

	pdf.SetTextColor(0, 0, 0)
	y := 32.0
	pdf.SetXY(10, y)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	pdf.CellFormat(35, 7, "Severidad", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Tipo de Proceso", "1", 0, "C", true, 0, "")
	pdf.CellFormat(45, 7, "Periodo", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Vencimiento", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Estado", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, r := range rows {
		fill, textR, textG, textB := severityColor(r.severity)
		pdf.SetFillColor(fill[0], fill[1], fill[2])
		pdf.SetTextColor(textR, textG, textB)
		pdf.SetX(10)
		pdf.CellFormat(35, 6, severityLabel(r.severity), "1", 0, "C", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(40, 6, string(r.process.ProcessType), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, r.process.Period, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, r.process.DueDate.Format("02/01/2006"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, string(r.process.Status), "1", 1, "C", false, 0, "")
	}

	if len(rows) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetX(10)
		pdf.CellFormat(190, 8, "Sin vencimientos pendientes.", "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func classify(dueDate, now time.Time) (models.AlertSeverity, bool) {
	// mirrors process.classify's band thresholds; duplicated rather than
	// exported because the engine's helper is package-private by design.
	if dueDate.Before(now) {
		return models.AlertOverdue, true
	}
	if !dueDate.After(now.Add(24 * time.Hour)) {
		return models.AlertUrgent, true
	}
	if !dueDate.After(now.Add(72 * time.Hour)) {
		return models.AlertReminder, true
	}
	return "", false
}

func severityLabel(s models.AlertSeverity) string {
	switch s {
	case models.AlertOverdue:
		return "VENCIDO"
	case models.AlertUrgent:
		return "URGENTE"
	default:
		return "RECORDATORIO"
	}
}

func severityColor(s models.AlertSeverity) (fill [3]int, r, g, b int) {
	switch s {
	case models.AlertOverdue:
		return [3]int{220, 53, 69}, 255, 255, 255
	case models.AlertUrgent:
		return [3]int{255, 193, 7}, 0, 0, 0
	default:
		return [3]int{200, 200, 200}, 0, 0, 0
	}
}
