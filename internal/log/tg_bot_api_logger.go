package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// TGBotAPIAdapter адаптирует slog.Logger под интерфейс логгера,
// который ожидает библиотека go-telegram-bot-api/v5. Сообщения
// библиотеки содержат URL запросов с токеном бота, поэтому они
// маскируются до передачи в логгер.
type TGBotAPIAdapter struct {
	Logger *slog.Logger
}

// Println реализует метод интерфейса tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Println(v ...interface{}) {
	a.Logger.Info(maskTokens(strings.TrimSpace(fmt.Sprintln(v...))))
}

// Printf реализует метод интерфейса tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Printf(format string, v ...interface{}) {
	a.Logger.Info(maskTokens(strings.TrimSpace(fmt.Sprintf(format, v...))))
}
