package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/findtime/findtime/pkg/findtime/models"
)

// ErrEventNotFound is returned when an id does not match a live event.
var ErrEventNotFound = errors.New("event not found")

const insertBatchSize = 200

// Store is the persistence the event service needs. Every read excludes
// soft-deleted rows.
type Store interface {
	// Transaction runs fn against a store bound to one unit of work. Nested
	// calls run in a savepoint that can fail without aborting the outer one.
	Transaction(ctx context.Context, fn func(Store) error) error
	Insert(ctx context.Context, e *models.Event) error
	InsertMany(ctx context.Context, events []models.Event) error
	FindByID(ctx context.Context, id uint) (*models.Event, error)
	// FindChain returns the master and every instance of chainID, ordered by start.
	FindChain(ctx context.Context, chainID uint) ([]models.Event, error)
	SaveAll(ctx context.Context, events []models.Event) error
	SoftDelete(ctx context.Context, ids []uint) (int64, error)
	SetCategory(ctx context.Context, ids []uint, categoryID uint) (int64, error)
	ListByGroup(ctx context.Context, groupID uint) ([]models.Event, error)
	NextInGroup(ctx context.Context, groupID uint, from time.Time) (*models.Event, error)
}

// GormStore implements Store on gorm. gorm's soft-delete scope is the only
// deleted-row filter in use.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Insert(ctx context.Context, e *models.Event) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(e).Error; err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *GormStore) InsertMany(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).CreateInBatches(&events, insertBatchSize).Error; err != nil {
		return fmt.Errorf("inserting %d events: %w", len(events), err)
	}
	return nil
}

func (s *GormStore) FindByID(ctx context.Context, id uint) (*models.Event, error) {
	var e models.Event
	err := s.db.WithContext(ctx).Preload("Category").First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading event %d: %w", id, err)
	}
	return &e, nil
}

func (s *GormStore) FindChain(ctx context.Context, chainID uint) ([]models.Event, error) {
	var chain []models.Event
	err := s.db.WithContext(ctx).
		Where("id = ? OR recurring_group_id = ?", chainID, chainID).
		Order("start_time ASC, id ASC").
		Find(&chain).Error
	if err != nil {
		return nil, fmt.Errorf("loading chain %d: %w", chainID, err)
	}
	return chain, nil
}

func (s *GormStore) SaveAll(ctx context.Context, events []models.Event) error {
	db := s.db.WithContext(ctx).Omit(clause.Associations)
	for i := range events {
		if err := db.Save(&events[i]).Error; err != nil {
			return fmt.Errorf("saving event %d: %w", events[i].ID, err)
		}
	}
	return nil
}

func (s *GormStore) SoftDelete(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Event{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting events: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) SetCategory(ctx context.Context, ids []uint, categoryID uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"category_id": categoryID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, fmt.Errorf("setting category: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) ListByGroup(ctx context.Context, groupID uint) ([]models.Event, error) {
	var list []models.Event
	err := s.db.WithContext(ctx).
		Preload("Creator", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Category").
		Where("group_id = ?", groupID).
		Order("start_time ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("listing events for group %d: %w", groupID, err)
	}
	return list, nil
}

func (s *GormStore) NextInGroup(ctx context.Context, groupID uint, from time.Time) (*models.Event, error) {
	var e models.Event
	err := s.db.WithContext(ctx).
		Preload("Category").
		Where("group_id = ? AND start_time >= ?", groupID, from.UTC()).
		Order("start_time ASC, id ASC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading next event: %w", err)
	}
	return &e, nil
}
