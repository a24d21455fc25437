package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
)

const sheetName = "Участники"

// ExcelWriter пишет выгрузку в XLSX-файл.
type ExcelWriter struct{}

// NewExcelWriter создает новый экземпляр ExcelWriter.
func NewExcelWriter() ports.RowWriter {
	return &ExcelWriter{}
}

// Export записывает полный набор строк в XLSX-файл по указанному пути.
func (w *ExcelWriter) Export(path string, rows []domain.ExportRow, adminFields bool) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("не удалось создать лист: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("не удалось удалить лист по умолчанию: %w", err)
	}

	// Заголовки
	for i, h := range headerRow(adminFields) {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("не удалось вычислить адрес ячейки: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("не удалось записать заголовок: %w", err)
		}
	}

	// Данные
	for r, row := range rows {
		for c, value := range cellRow(row, adminFields) {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("не удалось вычислить адрес ячейки: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("не удалось записать ячейку: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("не удалось сохранить XLSX-файл %s: %w", path, err)
	}
	return nil
}
