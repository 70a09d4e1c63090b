package changes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("offline change not found")
	ErrUnknownModel = errors.New("unknown model")
	ErrDuplicate    = errors.New("offline change already recorded")
)

// Applier aplica un cambio sobre el módulo dueño del modelo y devuelve el id
// de la entidad afectada.
type Applier interface {
	ApplyChange(ctx context.Context, actorID, op, targetID string, data json.RawMessage) (string, error)
}

// ApplierFunc adapta una función a Applier.
type ApplierFunc func(ctx context.Context, actorID, op, targetID string, data json.RawMessage) (string, error)

func (f ApplierFunc) ApplyChange(ctx context.Context, actorID, op, targetID string, data json.RawMessage) (string, error) {
	return f(ctx, actorID, op, targetID, data)
}

type Service struct {
	repo Repository
	now  func() time.Time

	mu       sync.RWMutex
	appliers map[Model]Applier
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		now:      time.Now,
		appliers: make(map[Model]Applier),
	}
}

// Register asocia un modelo con su Applier. Se llama al armar el router.
func (s *Service) Register(model Model, a Applier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appliers[model] = a
}

type Input struct {
	Type     ChangeType
	Model    Model
	TargetID string
	Data     json.RawMessage
	ClientID string
}

// Result por cambio. Status es "success" o "error".
type Result struct {
	Status   string
	ChangeID string
	ID       string
	Message  string
}

// Submit registra y aplica cada cambio en orden. Un cambio fallido no
// detiene a los siguientes; cada uno informa su resultado.
func (s *Service) Submit(ctx context.Context, actorID string, in []Input) ([]Result, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, ErrInvalidInput
	}

	out := make([]Result, 0, len(in))
	for _, item := range in {
		out = append(out, s.submitOne(ctx, actorID, item))
	}
	return out, nil
}

func (s *Service) submitOne(ctx context.Context, actorID string, in Input) Result {
	c := OfflineChange{
		ID:         uuid.NewString(),
		ChangeType: ChangeType(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		Model:      Model(strings.ToLower(strings.TrimSpace(string(in.Model)))),
		TargetID:   strings.TrimSpace(in.TargetID),
		Data:       in.Data,
		ClientID:   strings.TrimSpace(in.ClientID),
		CreatedBy:  actorID,
		CreatedAt:  s.now().UTC(),
		Status:     StatusPending,
	}
	if len(c.Data) == 0 {
		c.Data = json.RawMessage("{}")
	}

	if c.ClientID != "" {
		prev, err := s.repo.GetByClientID(ctx, actorID, c.ClientID)
		switch {
		case err == nil:
			if res, done := recorded(prev); done {
				return res
			}
			// falló antes: se reintenta sobre la misma entrada del journal
			c.ID, c.CreatedAt = prev.ID, prev.CreatedAt
			return s.applyAndRecord(ctx, c)
		case !errors.Is(err, ErrNotFound):
			return Result{Status: "error", Message: "journal: " + err.Error()}
		}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// otro request con la misma clave ganó la carrera
			if prev, gerr := s.repo.GetByClientID(ctx, actorID, c.ClientID); gerr == nil {
				if res, done := recorded(prev); done {
					return res
				}
			}
			return Result{Status: "error", Message: "change is being applied by another request"}
		}
		return Result{Status: "error", ChangeID: c.ID, Message: "journal: " + err.Error()}
	}
	return s.applyAndRecord(ctx, c)
}

// recorded devuelve el resultado de un cambio ya aplicado. Los fallidos se
// reintentan; los pendientes los está aplicando otro request.
func recorded(prev OfflineChange) (Result, bool) {
	switch prev.Status {
	case StatusApplied:
		return Result{Status: "success", ChangeID: prev.ID, ID: prev.ResultID}, true
	case StatusPending:
		return Result{Status: "error", ChangeID: prev.ID, Message: "change is being applied by another request"}, true
	}
	return Result{}, false
}

func (s *Service) applyAndRecord(ctx context.Context, c OfflineChange) Result {
	resultID, applyErr := s.apply(ctx, c)

	now := s.now().UTC()
	if applyErr != nil {
		c.Status = StatusFailed
		c.Error = applyErr.Error()
	} else {
		c.Status = StatusApplied
		c.AppliedAt = &now
		c.ResultID = resultID
		c.Error = ""
	}
	if err := s.repo.Update(ctx, c); err != nil && applyErr == nil {
		applyErr = fmt.Errorf("journal: %w", err)
	}

	if applyErr != nil {
		return Result{Status: "error", ChangeID: c.ID, ID: c.TargetID, Message: applyErr.Error()}
	}
	return Result{Status: "success", ChangeID: c.ID, ID: resultID}
}

func (s *Service) apply(ctx context.Context, c OfflineChange) (string, error) {
	if !c.ChangeType.Valid() {
		return "", fmt.Errorf("%w: change type %q", ErrInvalidInput, c.ChangeType)
	}
	if c.ChangeType != ChangeCreate && c.TargetID == "" {
		return "", fmt.Errorf("%w: id required for %s", ErrInvalidInput, c.ChangeType)
	}

	s.mu.RLock()
	a, ok := s.appliers[c.Model]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, c.Model)
	}

	return a.ApplyChange(ctx, c.CreatedBy, string(c.ChangeType), c.TargetID, c.Data)
}

func (s *Service) GetByID(ctx context.Context, id string) (OfflineChange, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return OfflineChange{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]OfflineChange, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
