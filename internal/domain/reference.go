package domain

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// channelIDPattern распознает полный внутренний идентификатор канала/супергруппы,
// например "-1001234567890".
var channelIDPattern = regexp.MustCompile(`^-?100\d{5,}$`)

// nonNumericPattern вырезает из сегмента пути все, кроме цифр и минуса.
var nonNumericPattern = regexp.MustCompile(`[^0-9-]`)

// linkDomains — известные короткие домены Telegram, включая www-варианты.
var linkDomains = map[string]struct{}{
	"t.me":             {},
	"telegram.me":      {},
	"telegram.dog":     {},
	"www.t.me":         {},
	"www.telegram.me":  {},
	"www.telegram.dog": {},
}

// ChatReference — каноническое описание ссылки на чат после нормализации.
// Сравнивается по значению: два разных ввода, нормализованных в одинаковые
// описания, считаются одним и тем же запросом на разрешение.
type ChatReference struct {
	// Raw — исходный ввод пользователя после обрезки пробелов.
	Raw string
	// Target — текстовая цель (username или исходная строка); пусто, если цель числовая.
	Target string
	// TargetID — числовая цель (внутренний id чата); 0, если цель текстовая.
	TargetID int64
	// InviteToken — хеш инвайт-ссылки, если ввод был инвайтом.
	InviteToken string
}

// Numeric возвращает числовую цель, если она задана.
func (r ChatReference) Numeric() (int64, bool) {
	return r.TargetID, r.TargetID != 0
}

// NormalizeID нормализует уже известный внутренний идентификатор чата.
func NormalizeID(id int64) ChatReference {
	return ChatReference{Raw: strconv.FormatInt(id, 10), TargetID: id}
}

// Normalize разбирает произвольный пользовательский ввод (username, числовой id,
// ссылку t.me, инвайт-ссылку) в каноническое описание. Функция чистая и
// детерминированная: UI вызывает ее на каждое изменение поля ввода и сравнивает
// результаты по значению, чтобы не запускать повторное разрешение.
func Normalize(input string) (ChatReference, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ChatReference{}, ErrInvalidReference
	}

	// Полный внутренний id канала, например "-1001234567890".
	if channelIDPattern.MatchString(raw) {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return ChatReference{Raw: raw, TargetID: id}, nil
		}
		return ChatReference{Raw: raw, Target: raw}, nil
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if ref, ok := normalizeLink(raw); ok {
			return ref, nil
		}
	}

	// Голый инвайт-хеш вида "+AbCdEf12".
	if strings.HasPrefix(raw, "+") {
		return ChatReference{Raw: raw, Target: raw, InviteToken: strings.TrimLeft(raw, "+")}, nil
	}

	// По умолчанию считаем ввод username или phone-ссылкой.
	return ChatReference{Raw: raw, Target: raw}, nil
}

// normalizeLink разбирает абсолютную ссылку на один из известных доменов.
// Возвращает ok=false, когда ссылка не дает правила (чужой домен, пустой путь),
// и ввод должен провалиться в обработку по умолчанию.
func normalizeLink(raw string) (ChatReference, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ChatReference{}, false
	}
	if _, known := linkDomains[strings.ToLower(parsed.Host)]; !known {
		return ChatReference{}, false
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return ChatReference{}, false
	}
	parts := strings.Split(path, "/")
	first := parts[0]

	// Приватная ссылка на канал: t.me/c/<id>/<msg>.
	if first == "c" && len(parts) >= 2 {
		numeric := nonNumericPattern.ReplaceAllString(parts[1], "")
		if numeric != "" {
			full := numeric
			if !strings.HasPrefix(numeric, "-100") {
				full = "-100" + strings.TrimLeft(numeric, "-")
			}
			if id, err := strconv.ParseInt(full, 10, 64); err == nil {
				return ChatReference{Raw: raw, TargetID: id}, true
			}
			return ChatReference{Raw: raw, Target: full}, true
		}
	}

	// Инвайт-ссылки старого формата: t.me/joinchat/<hash> (и addstickers по той же схеме).
	if (first == "joinchat" || first == "addstickers") && len(parts) >= 2 {
		return ChatReference{Raw: raw, Target: raw, InviteToken: parts[1]}, true
	}

	// Инвайт-ссылки нового формата: t.me/+<hash>.
	if strings.HasPrefix(first, "+") {
		return ChatReference{Raw: raw, Target: raw, InviteToken: strings.TrimLeft(first, "+")}, true
	}

	// Обычная ссылка на публичный username.
	return ChatReference{Raw: raw, Target: first}, true
}
