package domain

import "errors"

var (
	// ErrInvalidReference возвращается, когда введенный идентификатор чата не удалось разобрать.
	ErrInvalidReference = errors.New("could not parse chat identifier")

	// ErrUnresolvedInvite возвращается, когда инвайт-ссылка указывает на чат,
	// в котором аккаунт еще не состоит. Присоединение не выполняется автоматически.
	ErrUnresolvedInvite = errors.New("invite link could not be resolved: join the chat first or check permissions")

	// ErrInvalidCredentials возвращается при неверных учетных данных Telegram.
	ErrInvalidCredentials = errors.New("telegram credentials were rejected")

	// ErrPermissionDenied — серверу нужны права администратора для операции.
	// На границе перечисления участников деградирует до пустого результата.
	ErrPermissionDenied = errors.New("admin rights required")

	// ErrRPC — протокольная ошибка API (rate limit и подобное). Для подсчета
	// ботов и недавних участников трактуется как ErrPermissionDenied, для
	// основного потока и скана активности — прерывает выгрузку.
	ErrRPC = errors.New("rpc error")

	// ErrAlreadyParticipant — гонка "уже участник" при проверке инвайта.
	// Разрешитель прозрачно повторяет проверку один раз.
	ErrAlreadyParticipant = errors.New("already a participant")
)

// Degradable сообщает, относится ли ошибка к классу, который перечисление
// ботов/недавних участников сглаживает до нулевого результата.
func Degradable(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrRPC)
}
