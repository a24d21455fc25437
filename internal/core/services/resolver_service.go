package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"telegram-member-export/internal/cache"
	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
)

// ResolverOption — функциональная опция для настройки ResolverService.
type ResolverOption func(*ResolverService)

// WithResolutionCache подключает кеш разрешений с указанным сроком жизни записей.
func WithResolutionCache(c *cache.ResolutionCache, ttl time.Duration) ResolverOption {
	return func(s *ResolverService) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithResolverLogger устанавливает логгер для сервиса.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(s *ResolverService) {
		if l != nil {
			s.log = l
		}
	}
}

// ResolverService разрешает каноническое описание чата в сущность.
// Инвайт-ссылки только проверяются: сервис никогда не присоединяется к чату.
// Сервис не хранит изменяемого состояния, кроме кеша, и безопасен для
// одновременного использования.
type ResolverService struct {
	cache *cache.ResolutionCache
	ttl   time.Duration
	log   *slog.Logger
}

// NewResolverService создает новый ResolverService.
func NewResolverService(opts ...ResolverOption) *ResolverService {
	s := &ResolverService{
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve разрешает описание чата через переданный клиент.
// Результаты кешируются по значению описания: эквивалентные вводы
// дедуплицируются в один запрос к API.
func (s *ResolverService) Resolve(ctx context.Context, client ports.DirectoryClient, ref domain.ChatReference) (*domain.ChatEntity, error) {
	if s.cache != nil {
		if entity, found := s.cache.Get(ref); found {
			s.log.DebugContext(ctx, "Resolution served from cache", "raw", ref.Raw)
			return entity, nil
		}
	}

	entity, err := s.resolve(ctx, client, ref)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(ref, entity, s.ttl)
	}
	return entity, nil
}

func (s *ResolverService) resolve(ctx context.Context, client ports.DirectoryClient, ref domain.ChatReference) (*domain.ChatEntity, error) {
	if ref.InviteToken != "" {
		return s.resolveInvite(ctx, client, ref)
	}
	return client.ResolveTarget(ctx, ref)
}

// resolveInvite проверяет инвайт-ссылку, не присоединяясь к чату.
// Гонка "уже участник" между проверками прозрачно повторяется один раз.
func (s *ResolverService) resolveInvite(ctx context.Context, client ports.DirectoryClient, ref domain.ChatReference) (*domain.ChatEntity, error) {
	check, err := client.CheckInvite(ctx, ref.InviteToken)
	if errors.Is(err, domain.ErrAlreadyParticipant) {
		s.log.DebugContext(ctx, "Invite check raced with membership, retrying once", "raw", ref.Raw)
		check, err = client.CheckInvite(ctx, ref.InviteToken)
	}
	if err != nil {
		return nil, err
	}

	if !check.AlreadyParticipant || check.Entity == nil {
		return nil, domain.ErrUnresolvedInvite
	}
	return check.Entity, nil
}

// PreviewResolver выполняет фоновые разрешения для превью в UI.
// Каждый новый запрос отменяет и вытесняет предыдущий: доставляется
// только результат самого свежего ввода.
type PreviewResolver struct {
	router   ports.SessionRouter
	resolver ports.Resolver
	log      *slog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewPreviewResolver создает новый PreviewResolver поверх роутера сессий.
func NewPreviewResolver(router ports.SessionRouter, resolver ports.Resolver, log *slog.Logger) *PreviewResolver {
	if log == nil {
		log = slog.Default()
	}
	return &PreviewResolver{
		router:   router,
		resolver: resolver,
		log:      log,
	}
}

// Preview запускает фоновое разрешение ввода и доставляет результат через deliver.
// Если к моменту завершения появился более свежий запрос, результат отбрасывается.
func (p *PreviewResolver) Preview(ctx context.Context, input string, deliver func(*domain.ChatEntity, error)) {
	ref, err := domain.Normalize(input)
	if err != nil {
		deliver(nil, err)
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	go func() {
		defer cancel()

		entity, err := p.resolveOnce(runCtx, ref)

		p.mu.Lock()
		current := gen == p.generation
		p.mu.Unlock()
		if !current || runCtx.Err() != nil {
			// Запрос вытеснен более свежим вводом.
			return
		}
		deliver(entity, err)
	}()
}

func (p *PreviewResolver) resolveOnce(ctx context.Context, ref domain.ChatReference) (*domain.ChatEntity, error) {
	lease, err := p.router.Acquire(ctx)
	if err != nil {
		p.log.WarnContext(ctx, "Preview could not acquire a session", "error", err)
		return nil, err
	}
	defer lease.Release()

	return p.resolver.Resolve(ctx, lease.Client(), ref)
}
