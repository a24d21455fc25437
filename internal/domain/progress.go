package domain

import "fmt"

// ProgressKind — тип события прогресса пайплайна.
type ProgressKind string

const (
	ProgressResolved      ProgressKind = "resolved"
	ProgressCollecting    ProgressKind = "collecting"
	ProgressBotsCounted   ProgressKind = "bots_counted"
	ProgressBotsDenied    ProgressKind = "bots_denied"
	ProgressRecentCounted ProgressKind = "recent_counted"
	ProgressRecentDenied  ProgressKind = "recent_denied"
	ProgressParticipants  ProgressKind = "participants"
	ProgressFallback      ProgressKind = "fallback"
	ProgressScanning      ProgressKind = "scanning"
	ProgressScanned       ProgressKind = "scanned"
	ProgressScanDone      ProgressKind = "scan_done"
	ProgressSaved         ProgressKind = "saved"
)

// ProgressEvent — структурированное событие прогресса.
// Пайплайн сообщает только {вид, счетчик, полезная нагрузка};
// преобразование в текст — дело пограничного слоя (CLI, сервер, бот).
type ProgressEvent struct {
	Kind    ProgressKind
	Count   int
	Message string
}

// String возвращает человекочитаемое представление события.
func (e ProgressEvent) String() string {
	switch e.Kind {
	case ProgressResolved:
		return fmt.Sprintf("Resolved chat title: %s", e.Message)
	case ProgressCollecting:
		return "Collecting participants..."
	case ProgressBotsCounted:
		return fmt.Sprintf("Bots counted: %d", e.Count)
	case ProgressBotsDenied:
		return "Unable to enumerate bots without sufficient rights; continuing with 0."
	case ProgressRecentCounted:
		return fmt.Sprintf("Recent participants counted: %d", e.Count)
	case ProgressRecentDenied:
		return "Unable to enumerate recent members without sufficient rights."
	case ProgressParticipants:
		return fmt.Sprintf("Participants collected: %d", e.Count)
	case ProgressFallback:
		return "No participants via API; scanning messages as fallback..."
	case ProgressScanning:
		return "Scanning message activity..."
	case ProgressScanned:
		return fmt.Sprintf("Messages scanned: %d", e.Count)
	case ProgressScanDone:
		return fmt.Sprintf("Activity scan finished after %d messages", e.Count)
	case ProgressSaved:
		return fmt.Sprintf("Saved export: %s", e.Message)
	default:
		return e.Message
	}
}
