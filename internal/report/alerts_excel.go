// Package report 告警导出
package report

import (
	"bytes"
	"fmt"

	"vigil-backend/internal/domain"

	"github.com/xuri/excelize/v2"
)

// AlertSheet 工作表名称
const AlertSheet = "Alerts"

// TimeLayout 告警时间在导出与 API 中的格式
const TimeLayout = "2006-01-02 15:04:05"

// AlertExportHeader 导出表头
var AlertExportHeader = []string{
	"ID",
	"Time (UTC)",
	"Type",
	"Severity",
	"Room",
	"Message (EN)",
	"Message (KO)",
}

var alertColumnWidths = []float64{8, 20, 12, 10, 18, 48, 48}

// GenerateAlertsWorkbook 生成告警 Excel（按传入顺序写入）
func GenerateAlertsWorkbook(alerts []*domain.Alert) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(AlertSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	highStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create severity style: %w", err)
	}

	header := make([]interface{}, len(AlertExportHeader))
	for i, h := range AlertExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(AlertSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(AlertExportHeader))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(AlertSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, w := range alertColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(AlertSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, a := range alerts {
		row := i + 2 // 第1行是表头
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			a.AlertID,
			a.Time.UTC().Format(TimeLayout),
			a.Type,
			string(a.Severity),
			a.Room,
			a.MessageEN,
			a.MessageKO,
		}
		if err := f.SetSheetRow(AlertSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if a.Severity == domain.SeverityHigh {
			sevCell, _ := excelize.CoordinatesToCellName(4, row)
			if err := f.SetCellStyle(AlertSheet, sevCell, sevCell, highStyle); err != nil {
				return nil, fmt.Errorf("failed to set severity style: %w", err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(AlertSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
