package exporter

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
)

// ConsoleWriter печатает выгрузку в виде таблицы. Путь к файлу игнорируется:
// писатель предназначен для интерактивного режима CLI.
type ConsoleWriter struct {
	out io.Writer
}

// NewConsoleWriter создает новый экземпляр ConsoleWriter, пишущий в stdout.
func NewConsoleWriter() ports.RowWriter {
	return &ConsoleWriter{out: os.Stdout}
}

// Export печатает полный набор строк таблицей.
func (w *ConsoleWriter) Export(_ string, rows []domain.ExportRow, adminFields bool) error {
	if len(rows) == 0 {
		fmt.Fprintln(w.out, "No participants found.")
		return nil
	}

	table := tablewriter.NewWriter(w.out)
	table.SetHeader(headerRow(adminFields))
	// Заголовки печатаются как есть, теми же именами полей, что в csv/xlsx.
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		table.Append(cellRow(row, adminFields))
	}
	table.Render()
	return nil
}
