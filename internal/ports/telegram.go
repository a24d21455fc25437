package ports

import (
	"context"
	"time"
)

// SessionClient — клиент Telegram с собственной сессией.
// Помимо возможностей справочника, у него есть жизненный цикл и проверка здоровья.
type SessionClient interface {
	DirectoryClient

	// ID возвращает уникальный идентификатор клиента.
	ID() string
	// Start запускает фоновый процесс клиента. Вызывается один раз.
	Start(ctx context.Context)
	// Health проверяет работоспособность клиента.
	Health(ctx context.Context) error
	// GetRecoveryTime возвращает момент, когда клиент снова станет доступен
	// после FLOOD_WAIT; нулевое время — клиент здоров.
	GetRecoveryTime() time.Time
}

// Lease — эксклюзивная аренда сессии на время одной выгрузки.
// Release обязан вызываться на каждом пути выхода, включая ошибочные.
type Lease interface {
	Client() SessionClient
	Release()
}

// SessionRouter управляет пулом клиентов и выдает эксклюзивные аренды.
// Одна выгрузка владеет своей сессией от начала до конца; превью разрешения
// берут отдельные короткоживущие аренды.
type SessionRouter interface {
	Acquire(ctx context.Context) (Lease, error)
	Stop()
	// NextRecoveryTime возвращает ближайший момент восстановления нездорового клиента.
	NextRecoveryTime() time.Time
}

// Strategy — стратегия выбора клиента из списка доступных.
type Strategy interface {
	Next(clients []SessionClient) (SessionClient, error)
}
