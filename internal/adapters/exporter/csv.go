package exporter

import (
	"encoding/csv"
	"fmt"
	"os"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
)

// CSVWriter пишет выгрузку в CSV-файл.
type CSVWriter struct{}

// NewCSVWriter создает новый экземпляр CSVWriter.
func NewCSVWriter() ports.RowWriter {
	return &CSVWriter{}
}

// Export записывает полный набор строк в файл по указанному пути.
func (w *CSVWriter) Export(path string, rows []domain.ExportRow, adminFields bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("не удалось создать CSV-файл %s: %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(headerRow(adminFields)); err != nil {
		return fmt.Errorf("не удалось записать заголовок CSV: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(cellRow(row, adminFields)); err != nil {
			return fmt.Errorf("не удалось записать строку CSV: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("не удалось завершить запись CSV: %w", err)
	}
	return nil
}
