package router

import (
	"errors"
	"sync/atomic"

	"telegram-member-export/internal/ports"
)

// ErrNoClients возвращается стратегии, когда список кандидатов пуст.
var ErrNoClients = errors.New("no clients to choose from")

// RoundRobinStrategy реализует стратегию выбора "по кругу" (Round Robin).
type RoundRobinStrategy struct {
	// currentIndex хранит индекс последнего выбранного клиента.
	// Используется atomic для потокобезопасного инкремента.
	currentIndex uint32
}

// NewRoundRobinStrategy создает новую Round Robin стратегию.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Next возвращает следующего клиента в списке, инкрементируя индекс по кругу.
func (s *RoundRobinStrategy) Next(clients []ports.SessionClient) (ports.SessionClient, error) {
	if len(clients) == 0 {
		return nil, ErrNoClients
	}
	idx := atomic.AddUint32(&s.currentIndex, 1) - 1
	return clients[idx%uint32(len(clients))], nil
}
