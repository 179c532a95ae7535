package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// roomEvent is the table row.
type roomEvent struct {
	ID        uint      `gorm:"primaryKey"`
	RoomCode  string    `gorm:"size:8;index"`
	Kind      string    `gorm:"size:32;index"`
	HostSkin  string    `gorm:"size:64"`
	Players   int
	CreatedAt time.Time `gorm:"index"`
}

func (roomEvent) TableName() string { return "room_events" }

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects with dsn and migrates the room_events table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&roomEvent{}); err != nil {
		return nil, fmt.Errorf("migrate room_events: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, e Entry) error {
	row := roomEvent{
		RoomCode:  e.RoomCode,
		Kind:      string(e.Kind),
		HostSkin:  e.HostSkin,
		Players:   e.Players,
		CreatedAt: e.At,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Recent returns the newest entries for a room code, newest first.
func (s *GormStore) Recent(ctx context.Context, code string, limit int) ([]Entry, error) {
	var rows []roomEvent
	err := s.db.WithContext(ctx).
		Where("room_code = ?", code).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			RoomCode: r.RoomCode,
			Kind:     Kind(r.Kind),
			HostSkin: r.HostSkin,
			Players:  r.Players,
			At:       r.CreatedAt,
		})
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
