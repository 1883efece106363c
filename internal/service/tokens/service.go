package tokens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"fliptotp/internal/domain/ports"
	"fliptotp/internal/importer"
	"fliptotp/pkg/flipper"
)

// DefaultCacheTTL - время жизни кэша списка токенов.
const DefaultCacheTTL = 30 * time.Second

const listKey = "tokens"

// tokenList оборачивает срез, чтобы отличать пустой список от отсутствия записи в кэше.
type tokenList struct {
	items []flipper.TokenRecord
}

// TokenService отвечает за операции с токенами устройства.
type TokenService struct {
	device ports.Device
	cache  *ttlworker.Cache[string, *tokenList]
	logger ports.Logger
}

// NewTokenService создает новый экземпляр TokenService
func NewTokenService(device ports.Device, cacheTTL time.Duration, logger ports.Logger) *TokenService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &TokenService{
		device: device,
		cache:  ttlworker.NewCache[string, *tokenList](cacheTTL),
		logger: logger,
	}
}

// List возвращает токены устройства. refresh=true игнорирует кэш.
func (s *TokenService) List(ctx context.Context, refresh bool) ([]flipper.TokenRecord, error) {
	if !refresh {
		if cached := s.cache.Get(listKey); cached != nil {
			return append([]flipper.TokenRecord(nil), cached.items...), nil
		}
	}

	items, err := s.device.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(listKey, &tokenList{items: items})
	return append([]flipper.TokenRecord(nil), items...), nil
}

// Get возвращает полную информацию о токене.
func (s *TokenService) Get(ctx context.Context, id int) (flipper.TokenRecord, error) {
	return s.device.GetToken(ctx, id)
}

// Resolve находит номер токена по номеру или имени (без учёта регистра).
func (s *TokenService) Resolve(ctx context.Context, ref string) (int, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		return id, nil
	}
	items, err := s.List(ctx, false)
	if err != nil {
		return 0, err
	}
	for _, t := range items {
		if strings.EqualFold(t.Name, ref) {
			return t.ID, nil
		}
	}
	return 0, fmt.Errorf("токен %q не найден", ref)
}

// Add добавляет токен и возвращает его номер.
func (s *TokenService) Add(ctx context.Context, t flipper.TokenRecord) (int, error) {
	defer s.invalidate()
	t.Normalize()
	id, err := s.device.AddToken(ctx, t)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Токен %q добавлен (#%d)", t.Name, id)
	return id, nil
}

// Update изменяет токен. Пустой Secret оставляет секрет без изменений.
func (s *TokenService) Update(ctx context.Context, t flipper.TokenRecord) error {
	defer s.invalidate()
	t.Normalize()
	if err := s.device.UpdateToken(ctx, t); err != nil {
		return err
	}
	s.logger.Info("Токен #%d обновлён", t.ID)
	return nil
}

// Remove удаляет токен.
func (s *TokenService) Remove(ctx context.Context, id int) error {
	defer s.invalidate()
	if err := s.device.RemoveToken(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Токен #%d удалён", id)
	return nil
}

// Move переносит токен на новую позицию.
func (s *TokenService) Move(ctx context.Context, id, newID int) error {
	defer s.invalidate()
	if err := s.device.MoveToken(ctx, id, newID); err != nil {
		return err
	}
	s.logger.Info("Токен #%d перемещён на позицию %d", id, newID)
	return nil
}

func (s *TokenService) invalidate() {
	s.cache.Delete(listKey)
}

// ImportResult - итог массового импорта.
type ImportResult struct {
	Added      []int    // Номера добавленных токенов
	Duplicates []string // Имена, уже существующие на устройстве
	Errors     []error  // Ошибки разбора и добавления
}

// Import читает токены импортёром и добавляет на устройство те, которых ещё нет.
// Отказ пользователя на устройстве или отмена контекста прерывают импорт.
func (s *TokenService) Import(ctx context.Context, imp importer.Importer, r io.Reader) (ImportResult, error) {
	var result ImportResult

	records, parseErrs := imp.Import(r)
	result.Errors = append(result.Errors, parseErrs...)
	if len(records) == 0 {
		return result, nil
	}

	existing, err := s.List(ctx, true)
	if err != nil {
		return result, err
	}
	names := make(map[string]bool, len(existing))
	for _, t := range existing {
		names[strings.ToLower(t.Name)] = true
	}

	for _, t := range records {
		key := strings.ToLower(flipper.FoldName(t.Name))
		if names[key] {
			s.logger.Warn("Токен %q уже есть на устройстве, пропущен", t.Name)
			result.Duplicates = append(result.Duplicates, t.Name)
			continue
		}

		id, err := s.Add(ctx, t)
		if err != nil {
			if errors.Is(err, flipper.ErrUserCancelled) || errors.Is(err, flipper.ErrCancelled) || ctx.Err() != nil {
				return result, err
			}
			s.logger.Error("Не удалось добавить %q: %v", t.Name, err)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		names[key] = true
		result.Added = append(result.Added, id)
	}
	return result, nil
}
