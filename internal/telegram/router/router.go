package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"telegram-member-export/internal/pkg/config"
	"telegram-member-export/internal/ports"
	"telegram-member-export/internal/telegram"
)

var (
	// ErrNoAvailableClients возвращается, когда в пуле нет здоровых свободных клиентов.
	ErrNoAvailableClients = errors.New("no healthy unleased clients available")
)

// Option определяет функциональную опцию для конфигурации роутера.
type Option func(*Router)

// WithServerConfigs — опция для передачи конфигураций аккаунтов.
// Клиенты будут созданы внутри роутера.
func WithServerConfigs(serverConfigs []config.TelegramAPIServer) Option {
	return func(r *Router) {
		clients := make([]ports.SessionClient, 0, len(serverConfigs))
		for _, srvCfg := range serverConfigs {
			client := telegram.NewClient(telegram.Config{
				APIID:       srvCfg.APIID,
				APIHash:     srvCfg.APIHash,
				PhoneNumber: srvCfg.PhoneNumber,
				SessionPath: srvCfg.SessionFile,
			}, telegram.WithLogger(r.log.With("client_phone", srvCfg.PhoneNumber)))
			clients = append(clients, client)
		}
		r.clients = clients
	}
}

// WithClients — опция для передачи готовых клиентов (используется в тестах).
func WithClients(clients []ports.SessionClient) Option {
	return func(r *Router) {
		r.clients = clients
	}
}

// WithHealthCheckInterval — опция для установки интервала проверки работоспособности.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.healthCheckInterval = d
		}
	}
}

// WithStrategy — опция для установки стратегии выбора клиента.
func WithStrategy(s ports.Strategy) Option {
	return func(r *Router) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithLogger — опция для установки логгера.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// Router управляет пулом сессий Telegram и выдает их в эксклюзивную аренду.
// Одна выгрузка владеет сессией от начала до конца; превью разрешения берут
// отдельную короткоживущую аренду. Пока аренда не возвращена, клиент не
// достанется никому другому.
type Router struct {
	mu        sync.RWMutex
	healthy   map[string]ports.SessionClient
	unhealthy map[string]ports.SessionClient
	leased    map[string]struct{}
	strategy  ports.Strategy
	log       *slog.Logger

	clients             []ports.SessionClient // Начальный список клиентов, созданный из конфигов
	healthCheckInterval time.Duration
	ticker              *time.Ticker
	done                chan struct{}
	wg                  sync.WaitGroup
}

var _ ports.SessionRouter = (*Router)(nil)

// NewRouter создает и запускает новый роутер с использованием функциональных опций.
func NewRouter(ctx context.Context, opts ...Option) (*Router, error) {
	r := &Router{
		healthy:             make(map[string]ports.SessionClient),
		unhealthy:           make(map[string]ports.SessionClient),
		leased:              make(map[string]struct{}),
		strategy:            NewRoundRobinStrategy(),
		healthCheckInterval: 30 * time.Second,
		done:                make(chan struct{}),
		log:                 slog.Default().With("component", "router"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if len(r.clients) == 0 {
		return nil, errors.New("no server configs provided to router")
	}

	// Запускаем клиенты и инициализируем пул здоровых клиентов.
	for _, c := range r.clients {
		c.Start(ctx)
		r.healthy[c.ID()] = c
	}
	r.clients = nil // Больше не нужен

	r.ticker = time.NewTicker(r.healthCheckInterval)
	r.wg.Add(1)
	go r.healthCheckLoop()

	return r, nil
}

// Acquire выдает эксклюзивную аренду здорового клиента согласно стратегии.
// Клиент исключается из выдачи до вызова Release.
func (r *Router) Acquire(ctx context.Context) (ports.Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	available := make([]ports.SessionClient, 0, len(r.healthy))
	for id, c := range r.healthy {
		if _, busy := r.leased[id]; busy {
			continue
		}
		available = append(available, c)
	}

	client, err := r.strategy.Next(available)
	if err != nil {
		r.log.WarnContext(ctx, "No client available for lease", "healthy", len(r.healthy), "leased", len(r.leased))
		return nil, fmt.Errorf("%w: %v", ErrNoAvailableClients, err)
	}

	r.leased[client.ID()] = struct{}{}
	r.log.DebugContext(ctx, "Client leased", "client_id", client.ID())

	return &lease{router: r, client: client}, nil
}

// Stop останавливает фоновую проверку работоспособности клиентов.
func (r *Router) Stop() {
	r.log.Info("stopping router...")
	r.ticker.Stop()
	close(r.done)
	r.wg.Wait()
	r.log.Info("router stopped")
}

// NextRecoveryTime возвращает ближайший момент восстановления среди нездоровых клиентов.
func (r *Router) NextRecoveryTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var next time.Time
	for _, c := range r.unhealthy {
		t := c.GetRecoveryTime()
		if t.IsZero() {
			continue
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}

// release возвращает клиента в пул и запускает внеочередную проверку здоровья:
// выгрузка могла закончиться из-за FLOOD_WAIT.
func (r *Router) release(client ports.SessionClient) {
	r.mu.Lock()
	delete(r.leased, client.ID())
	r.mu.Unlock()

	r.log.Debug("Client lease released", "client_id", client.ID())
	go r.forceHealthCheck(client)
}

// healthCheckLoop — фоновая горутина, которая периодически проверяет
// неработоспособных клиентов и возвращает их в пул здоровых.
func (r *Router) healthCheckLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.checkUnhealthyClients()
		case <-r.done:
			r.log.Info("Health check loop is stopping.")
			return
		}
	}
}

// checkUnhealthyClients итерируется по нездоровым клиентам и проверяет их.
func (r *Router) checkUnhealthyClients() {
	r.mu.RLock()
	idsToCheck := make([]string, 0, len(r.unhealthy))
	for id := range r.unhealthy {
		idsToCheck = append(idsToCheck, id)
	}
	r.mu.RUnlock()

	if len(idsToCheck) == 0 {
		return
	}

	r.log.Debug("starting periodic health check for unhealthy clients", "count", len(idsToCheck))

	for _, id := range idsToCheck {
		r.mu.RLock()
		client, ok := r.unhealthy[id]
		r.mu.RUnlock()

		if !ok {
			continue // Клиент мог быть перемещен или удален.
		}

		if err := client.Health(context.Background()); err == nil {
			r.log.Info("client recovered, moving back to healthy pool", "client_id", id)
			r.setClientHealthy(id)
		} else {
			r.log.Debug("Client remains unhealthy", "client_id", id, "reason", err)
		}
	}
}

// forceHealthCheck выполняет внеочередную проверку здоровья клиента.
// Нездоровый клиент перемещается в соответствующий пул.
func (r *Router) forceHealthCheck(client ports.SessionClient) {
	if err := client.Health(context.Background()); err != nil {
		r.log.Warn("Client failed forced health check, moving to unhealthy pool", "client_id", client.ID(), "reason", err)
		r.setClientUnhealthy(client.ID())
	}
}

// setClientUnhealthy перемещает клиента из пула здоровых в пул нездоровых.
func (r *Router) setClientUnhealthy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.healthy[id]
	if !ok {
		return // Клиент уже был перемещен.
	}

	delete(r.healthy, id)
	r.unhealthy[id] = client

	r.log.Warn("Client moved to unhealthy pool", "client_id", id, "healthy_count", len(r.healthy), "unhealthy_count", len(r.unhealthy))
}

// setClientHealthy перемещает клиента из пула нездоровых в пул здоровых.
func (r *Router) setClientHealthy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.unhealthy[id]
	if !ok {
		return
	}

	delete(r.unhealthy, id)
	r.healthy[id] = client

	r.log.Info("Client moved back to healthy pool", "client_id", id, "healthy_count", len(r.healthy), "unhealthy_count", len(r.unhealthy))
}

// --- lease ---

// lease — эксклюзивная аренда одного клиента. Release идемпотентен:
// повторный вызов (например, из defer после явного освобождения) безопасен.
type lease struct {
	router      *Router
	client      ports.SessionClient
	releaseOnce sync.Once
}

func (l *lease) Client() ports.SessionClient {
	return l.client
}

func (l *lease) Release() {
	l.releaseOnce.Do(func() {
		l.router.release(l.client)
	})
}
