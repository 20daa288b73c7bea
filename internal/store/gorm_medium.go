package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Blob is a versioned key -> blob row. Version increments on every
// successful write and doubles as the optimistic-concurrency token.
type Blob struct {
	Key     string `gorm:"primaryKey"`
	Data    []byte `gorm:"not null"`
	Version int64  `gorm:"not null;default:0"`
}

// GormMedium implements Medium on a relational table, using a
// version-guarded UPDATE instead of a global lock: the round-trip between
// Read and Write holds nothing, and a racing writer is detected by the
// WHERE clause matching zero rows.
type GormMedium struct {
	db *gorm.DB
}

func NewGormMedium(db *gorm.DB) *GormMedium {
	return &GormMedium{db: db}
}

func (m *GormMedium) Read(ctx context.Context, key string) ([]byte, string, error) {
	var blob Blob
	err := m.db.WithContext(ctx).First(&blob, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return blob.Data, strconv.FormatInt(blob.Version, 10), nil
}

func (m *GormMedium) Write(ctx context.Context, key string, data []byte, version string) (string, error) {
	if version == "" {
		blob := Blob{Key: key, Data: data, Version: 1}
		err := m.db.WithContext(ctx).Create(&blob).Error
		if err != nil {
			// A duplicate key means someone created the blob since our read.
			if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
				return "", ErrConflict
			}
			return "", fmt.Errorf("%w: create %s: %v", ErrUnavailable, key, err)
		}
		return "1", nil
	}

	current, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad version token %q", ErrConflict, version)
	}

	res := m.db.WithContext(ctx).Model(&Blob{}).
		Where("key = ? AND version = ?", key, current).
		Updates(map[string]interface{}{"data": data, "version": current + 1})
	if res.Error != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrConflict
	}
	return strconv.FormatInt(current+1, 10), nil
}

// isUniqueViolation covers sqlite's constraint error text, which gorm does
// not always translate to ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
