// Package repository is the application-facing façade over the storage
// engine. It adds what the engine deliberately does not do itself: a
// read-through Redis cache on single-entity reads, change notifications
// after successful mutations, and PID minting for the publication flow.
//
// Cache and publisher are optional; a nil client degrades to plain engine
// calls, which is how tests and the seed tool run.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/infra/redis"
	"archivum/src/services/events"
	"archivum/src/services/persistence"
	"archivum/src/storage"
)

type Repository struct {
	logger    *slog.Logger
	storage   *storage.GraphStorage
	registry  *domain.Registry
	cache     *redis.RedisClient
	publisher *events.ChangePublisher
	pids      persistence.Minter
}

func NewRepository(
	logger *slog.Logger,
	graphStorage *storage.GraphStorage,
	registry *domain.Registry,
	cache *redis.RedisClient,
	publisher *events.ChangePublisher,
	pids persistence.Minter,
) *Repository {
	return &Repository{
		logger:    logger,
		storage:   graphStorage,
		registry:  registry,
		cache:     cache,
		publisher: publisher,
		pids:      pids,
	}
}

// --- domain entities ---

func (r *Repository) AddDomainEntity(ctx context.Context, e entities.Entity, change entities.Change) (string, error) {
	id, err := r.storage.AddDomainEntity(ctx, e, change)
	if err != nil {
		return "", err
	}
	r.notify(ctx, events.ActionAdd, e.Kind(), id)
	return id, nil
}

func (r *Repository) GetDomainEntity(ctx context.Context, kind entities.Kind, id string) (entities.Entity, error) {
	if e, ok := r.fromCache(ctx, kind, id); ok {
		return e, nil
	}
	e, err := r.storage.GetEntity(ctx, kind, id)
	if err != nil || e == nil {
		return nil, err
	}
	r.toCache(kind, id, e)
	return e, nil
}

// GetEntityOrDefaultVariation is the cached read behind entity GETs: the
// kind's own latest revision when stored, the primitive's shape otherwise.
func (r *Repository) GetEntityOrDefaultVariation(ctx context.Context, kind entities.Kind, id string) (entities.Entity, error) {
	if e, ok := r.fromCache(ctx, kind, id); ok {
		return e, nil
	}
	e, err := r.storage.GetEntityOrDefaultVariation(ctx, kind, id)
	if err != nil || e == nil {
		return nil, err
	}
	r.toCache(kind, id, e)
	return e, nil
}

func (r *Repository) GetRevision(ctx context.Context, kind entities.Kind, id string, rev int) (entities.Entity, error) {
	return r.storage.GetRevision(ctx, kind, id, rev)
}

func (r *Repository) GetAllVariations(ctx context.Context, kind entities.Kind, id string) ([]entities.Entity, error) {
	return r.storage.GetAllVariations(ctx, kind, id)
}

func (r *Repository) GetDomainEntities(ctx context.Context, kind entities.Kind) ([]entities.Entity, error) {
	return r.storage.GetEntities(ctx, kind)
}

func (r *Repository) FindEntityByProperty(ctx context.Context, kind entities.Kind, field string, value any) (entities.Entity, error) {
	return r.storage.FindEntityByProperty(ctx, kind, field, value)
}

func (r *Repository) UpdateDomainEntity(ctx context.Context, e entities.Entity, change entities.Change) error {
	if err := r.storage.UpdateEntity(ctx, e, change); err != nil {
		return err
	}
	r.invalidate(ctx, e.Kind(), e.Meta().ID)
	r.notify(ctx, events.ActionMod, e.Kind(), e.Meta().ID)
	return nil
}

func (r *Repository) AddVariant(ctx context.Context, e entities.Entity, change entities.Change) error {
	if err := r.storage.AddVariant(ctx, e, change); err != nil {
		return err
	}
	r.invalidate(ctx, e.Kind(), e.Meta().ID)
	r.notify(ctx, events.ActionMod, e.Kind(), e.Meta().ID)
	return nil
}

func (r *Repository) DeleteDomainEntity(ctx context.Context, kind entities.Kind, id string, change entities.Change) error {
	if err := r.storage.DeleteDomainEntity(ctx, kind, id, change); err != nil {
		return err
	}
	r.invalidate(ctx, kind, id)
	r.notify(ctx, events.ActionDel, kind, id)
	return nil
}

// PublishDomainEntity mints a fresh PID and assigns it. The entity must
// not have one yet.
func (r *Repository) PublishDomainEntity(ctx context.Context, kind entities.Kind, id string) (string, error) {
	pid := r.pids.NewPID()
	if err := r.storage.SetEntityPID(ctx, kind, id, pid); err != nil {
		return "", err
	}
	r.invalidate(ctx, kind, id)
	r.notify(ctx, events.ActionMod, kind, id)
	return pid, nil
}

// --- system entities ---

func (r *Repository) AddSystemEntity(ctx context.Context, e entities.Entity) (string, error) {
	id, err := r.storage.AddSystemEntity(ctx, e)
	if err != nil {
		return "", err
	}
	r.notify(ctx, events.ActionAdd, e.Kind(), id)
	return id, nil
}

func (r *Repository) GetSystemEntity(ctx context.Context, kind entities.Kind, id string) (entities.Entity, error) {
	if e, ok := r.fromCache(ctx, kind, id); ok {
		return e, nil
	}
	e, err := r.storage.GetEntity(ctx, kind, id)
	if err != nil || e == nil {
		return nil, err
	}
	r.toCache(kind, id, e)
	return e, nil
}

func (r *Repository) GetSystemEntities(ctx context.Context, kind entities.Kind) ([]entities.Entity, error) {
	return r.storage.GetEntities(ctx, kind)
}

func (r *Repository) UpdateSystemEntity(ctx context.Context, e entities.Entity, change entities.Change) error {
	if err := r.storage.UpdateEntity(ctx, e, change); err != nil {
		return err
	}
	r.invalidate(ctx, e.Kind(), e.Meta().ID)
	r.notify(ctx, events.ActionMod, e.Kind(), e.Meta().ID)
	return nil
}

func (r *Repository) DeleteSystemEntity(ctx context.Context, kind entities.Kind, id string) (int, error) {
	count, err := r.storage.DeleteSystemEntity(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		r.invalidate(ctx, kind, id)
		r.notify(ctx, events.ActionDel, kind, id)
	}
	return count, nil
}

// --- relations ---

func (r *Repository) AddRelation(ctx context.Context, rel *entities.Relation, change entities.Change) (string, error) {
	id, err := r.storage.AddRelation(ctx, rel, change)
	if err != nil {
		return "", err
	}
	// Endpoints changed shape too: their relation lists grew.
	r.notify(ctx, events.ActionAdd, entities.KindRelation, id)
	r.notify(ctx, events.ActionMod, rel.SourceKind, rel.SourceID)
	r.notify(ctx, events.ActionMod, rel.TargetKind, rel.TargetID)
	return id, nil
}

func (r *Repository) GetRelation(ctx context.Context, id string) (*entities.Relation, error) {
	return r.storage.GetRelation(ctx, id)
}

func (r *Repository) GetRelationRevision(ctx context.Context, id string, rev int) (*entities.Relation, error) {
	return r.storage.GetRelationRevision(ctx, id, rev)
}

func (r *Repository) GetRelations(ctx context.Context) ([]*entities.Relation, error) {
	return r.storage.GetRelations(ctx)
}

func (r *Repository) FindRelation(ctx context.Context, typeID, sourceID, targetID string) (*entities.Relation, error) {
	return r.storage.FindRelation(ctx, typeID, sourceID, targetID)
}

func (r *Repository) RelationsBySource(ctx context.Context, sourceID string) ([]*entities.Relation, error) {
	return r.storage.RelationsBySource(ctx, sourceID)
}

func (r *Repository) RelationsByTarget(ctx context.Context, targetID string) ([]*entities.Relation, error) {
	return r.storage.RelationsByTarget(ctx, targetID)
}

func (r *Repository) UpdateRelation(ctx context.Context, rel *entities.Relation, change entities.Change) error {
	if err := r.storage.UpdateRelation(ctx, rel, change); err != nil {
		return err
	}
	r.notify(ctx, events.ActionMod, entities.KindRelation, rel.Meta().ID)
	return nil
}

// PublishRelation mints a fresh PID for a relation and assigns it.
func (r *Repository) PublishRelation(ctx context.Context, id string) (string, error) {
	pid := r.pids.NewPID()
	if err := r.storage.SetRelationPID(ctx, id, pid); err != nil {
		return "", err
	}
	r.notify(ctx, events.ActionMod, entities.KindRelation, id)
	return pid, nil
}

// --- maintenance ---

func (r *Repository) IDsOfNonPersistent(ctx context.Context, kind entities.Kind) ([]string, error) {
	return r.storage.IDsOfNonPersistent(ctx, kind)
}

func (r *Repository) DeleteNonPersistent(ctx context.Context, kind entities.Kind, id string) error {
	if err := r.storage.DeleteNonPersistent(ctx, kind, id); err != nil {
		return err
	}
	r.invalidate(ctx, kind, id)
	return nil
}

func (r *Repository) IsAvailable(ctx context.Context) bool {
	return r.storage.IsAvailable(ctx)
}

// --- cache plumbing ---

func cacheKey(kind entities.Kind, id string) string {
	return fmt.Sprintf("entity:%s:%s", kind, id)
}

func (r *Repository) fromCache(ctx context.Context, kind entities.Kind, id string) (entities.Entity, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, found, err := r.cache.GetKey(ctx, cacheKey(kind, id))
	if err != nil {
		// Cache trouble never fails a read, the store is authoritative.
		r.logger.Warn("Cache read failed", "kind", kind.String(), "id", id, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	e, err := r.registry.New(kind)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw), e); err != nil {
		r.logger.Warn("Discarding undecodable cache entry", "kind", kind.String(), "id", id, "error", err)
		return nil, false
	}
	return e, true
}

func (r *Repository) toCache(kind entities.Kind, id string, e entities.Entity) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.cache.SetKey(ctx, cacheKey(kind, id), string(raw)); err != nil {
			r.logger.Warn("Cache write failed", "kind", kind.String(), "id", id, "error", err)
		}
	}()
}

// invalidate drops the cached entry for every kind sharing the id, since a
// mutation through one variation changes what the others read.
func (r *Repository) invalidate(ctx context.Context, kind entities.Kind, id string) {
	if r.cache == nil {
		return
	}
	primitive, err := r.registry.PrimitiveOf(kind)
	if err != nil {
		primitive = kind
	}
	var keys []string
	for _, vk := range r.registry.VariationsOf(primitive) {
		keys = append(keys, cacheKey(vk, id))
	}
	if len(keys) == 0 {
		keys = []string{cacheKey(kind, id)}
	}
	if err := r.cache.DeleteKeys(ctx, keys); err != nil {
		r.logger.Warn("Cache invalidation failed", "kind", kind.String(), "id", id, "error", err)
	}
}

func (r *Repository) notify(ctx context.Context, action events.Action, kind entities.Kind, id string) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.Publish(ctx, events.ChangeEvent{
		Action: action,
		Kind:   kind.String(),
		ID:     id,
	})
	if err != nil {
		// The mutation is already committed; a lost notification is
		// recoverable downstream, a failed request is not.
		r.logger.Error("Change notification failed", "action", string(action), "kind", kind.String(), "id", id, "error", err)
	}
}
