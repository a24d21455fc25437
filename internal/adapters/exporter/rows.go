// Package exporter содержит писателей финального набора строк выгрузки.
package exporter

import (
	"strconv"

	"telegram-member-export/internal/domain"
)

// headerRow возвращает заголовок таблицы выгрузки. Административные поля
// добавляются только в режиме администратора.
func headerRow(adminFields bool) []string {
	header := []string{"user_id", "username", "is_bot", "is_recent", "last_post", "last_reaction"}
	if adminFields {
		header = append(header, "join_date", "status")
	}
	return header
}

// cellRow превращает одну строку выгрузки в текстовые ячейки в порядке заголовка.
func cellRow(row domain.ExportRow, adminFields bool) []string {
	cells := []string{
		strconv.FormatInt(row.UserID, 10),
		row.Username,
		strconv.FormatBool(row.IsBot),
		strconv.FormatBool(row.IsRecent),
		domain.FormatTime(row.LastPost),
		row.LastReaction.String(),
	}
	if adminFields {
		cells = append(cells, domain.FormatTime(row.JoinDate), string(row.Status))
	}
	return cells
}
