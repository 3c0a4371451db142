package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/your-username/click-lite-discover/internal/models"
)

// Runner executes Discover queries
type Runner interface {
	Execute(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error)
}

// Exporter handles data export in various formats
type Exporter struct {
	runner Runner
	now    func() time.Time
}

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatCSV   ExportFormat = "csv"
	FormatJSON  ExportFormat = "json"
	FormatExcel ExportFormat = "xlsx"
)

const sheetName = "Discover"

// ExportOptions defines export parameters
type ExportOptions struct {
	Format         ExportFormat     `json:"format"`
	Query          models.QuerySpec `json:"query"`
	IncludeHeaders bool             `json:"include_headers"`
}

// ExportResult contains export operation results
type ExportResult struct {
	Format   ExportFormat  `json:"format"`
	RowCount int           `json:"row_count"`
	Duration time.Duration `json:"duration"`
	FileName string        `json:"file_name"`
}

// NewExporter creates a new exporter
func NewExporter(runner Runner) *Exporter {
	return &Exporter{
		runner: runner,
		now:    time.Now,
	}
}

// ContentType returns the MIME type of format, or false if unsupported
func ContentType(format ExportFormat) (string, bool) {
	switch format {
	case FormatCSV:
		return "text/csv", true
	case FormatJSON:
		return "application/json", true
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", true
	}
	return "", false
}

// FileName names an export of format created at t
func FileName(format ExportFormat, t time.Time) string {
	return fmt.Sprintf("discover_%s.%s", t.Format("20060102_150405"), format)
}

// Export runs the query of options for org and writes the result to writer
func (e *Exporter) Export(ctx context.Context, writer io.Writer, org string, options ExportOptions) (*ExportResult, error) {
	if _, ok := ContentType(options.Format); !ok {
		return nil, fmt.Errorf("unsupported export format: %s", options.Format)
	}

	start := e.now()
	result, err := e.runner.Execute(ctx, org, options.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to run export query: %w", err)
	}

	if err := Write(writer, result, options); err != nil {
		return nil, err
	}

	return &ExportResult{
		Format:   options.Format,
		RowCount: len(result.Data),
		Duration: e.now().Sub(start),
		FileName: FileName(options.Format, start),
	}, nil
}

// Write encodes an already fetched result
func Write(writer io.Writer, result *models.QueryResult, options ExportOptions) error {
	headers := Headers(result, options.Query)
	switch options.Format {
	case FormatCSV:
		return exportCSV(writer, result, headers, options.IncludeHeaders)
	case FormatJSON:
		return exportJSON(writer, result)
	case FormatExcel:
		return exportExcel(writer, result, headers)
	}
	return fmt.Errorf("unsupported export format: %s", options.Format)
}

// Headers returns the column order of an export: the result meta when
// present, otherwise the query's fields then aggregation aliases
func Headers(result *models.QueryResult, q models.QuerySpec) []string {
	if len(result.Meta) > 0 {
		headers := make([]string, len(result.Meta))
		for i, m := range result.Meta {
			headers[i] = m.Name
		}
		return headers
	}
	headers := append([]string{}, q.Fields...)
	for _, agg := range q.Aggregations {
		headers = append(headers, agg.Alias)
	}
	return headers
}

func exportCSV(writer io.Writer, result *models.QueryResult, headers []string, includeHeaders bool) error {
	csvWriter := csv.NewWriter(writer)

	if includeHeaders {
		if err := csvWriter.Write(headers); err != nil {
			return err
		}
	}
	for _, row := range result.Data {
		if err := csvWriter.Write(rowValues(row, headers)); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func rowValues(row map[string]interface{}, headers []string) []string {
	values := make([]string, len(headers))
	for i, h := range headers {
		values[i] = formatCell(row[h])
	}
	return values
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		data, _ := json.Marshal(val)
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

func exportJSON(writer io.Writer, result *models.QueryResult) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(map[string]interface{}{
		"data":  result.Data,
		"meta":  result.Meta,
		"count": len(result.Data),
	})
}

func exportExcel(writer io.Writer, result *models.QueryResult, headers []string) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E0E0E0"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 2},
		},
	})
	if err != nil {
		return err
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
		if err := file.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	if len(headers) > 0 {
		lastCol, err := excelize.ColumnNumberToName(len(headers))
		if err != nil {
			return err
		}
		if err := file.SetColWidth(sheetName, "A", lastCol, 20); err != nil {
			return err
		}
	}

	for r, row := range result.Data {
		for col, value := range rowValues(row, headers) {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	if len(result.Data) > 0 && len(headers) > 0 {
		last, err := excelize.CoordinatesToCellName(len(headers), len(result.Data)+1)
		if err != nil {
			return err
		}
		if err := file.AutoFilter(sheetName, "A1:"+last, nil); err != nil {
			return err
		}
	}

	return file.Write(writer)
}
