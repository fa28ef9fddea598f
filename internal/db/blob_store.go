package db

import (
	"context"
	"errors"
	"fmt"
	"lumina/internal/models"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConflict 条件写入时版本不匹配，说明这个键已被其他进程改过
var ErrConflict = errors.New("blob was modified by another writer")

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BlobStore 以整块 JSON 文本为单位读写的键值表
type BlobStore struct {
	db *gorm.DB
}

func NewBlobStore(db *gorm.DB) *BlobStore {
	return &BlobStore{db: db}
}

// Get 读取一个键，不存在时 ok 为 false
func (s *BlobStore) Get(ctx context.Context, key string) (models.Blob, bool, error) {
	var blobs []models.Blob
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).Limit(1).Find(&blobs).Error
	if err != nil {
		return models.Blob{}, false, fmt.Errorf("get blob %s: %w", key, err)
	}
	if len(blobs) == 0 {
		return models.Blob{}, false, nil
	}
	return blobs[0], true, nil
}

// Versions 批量读取版本号，不存在的键不会出现在结果中
func (s *BlobStore) Versions(ctx context.Context, keys ...string) (map[string]int64, error) {
	var rows []models.Blob
	err := s.db.WithContext(ctx).Select("blob_key", "version").Where("blob_key IN ?", keys).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read blob versions: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Version
	}
	return out, nil
}

// Put 无条件写入单个键
func (s *BlobStore) Put(ctx context.Context, key, value string) error {
	_, err := s.PutMany(ctx, map[string]string{key: value}, nil)
	return err
}

// PutMany 在一个事务内写入多个键，全部成功或全部失败，返回写入后的版本号
// expect 中出现的键只在当前版本等于期望值时写入（0 表示键必须不存在），否则整批回滚并返回 ErrConflict
func (s *BlobStore) PutMany(ctx context.Context, values map[string]string, expect map[string]int64) (map[string]int64, error) {
	if len(values) == 0 {
		return map[string]int64{}, nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now()
	versions := make(map[string]int64, len(values))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			var (
				v   int64
				err error
			)
			if want, guarded := expect[key]; guarded {
				v, err = putIfVersion(tx, key, values[key], want, now)
			} else {
				v, err = upsert(tx, key, values[key], now)
			}
			if err != nil {
				return err
			}
			versions[key] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func putIfVersion(tx *gorm.DB, key, value string, want int64, now time.Time) (int64, error) {
	if want == 0 {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Blob{Key: key, Value: value, Version: 1, UpdatedAt: now})
		if res.Error != nil {
			return 0, fmt.Errorf("put blob %s: %w", key, res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, fmt.Errorf("put blob %s: %w", key, ErrConflict)
		}
		return 1, nil
	}

	res := tx.Model(&models.Blob{}).
		Where("blob_key = ? AND version = ?", key, want).
		Updates(map[string]any{"value": value, "version": want + 1, "updated_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("put blob %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("put blob %s: %w", key, ErrConflict)
	}
	return want + 1, nil
}

func upsert(tx *gorm.DB, key, value string, now time.Time) (int64, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      value,
			"updated_at": now,
			"version":    gorm.Expr("blobs.version + 1"),
		}),
	}).Create(&models.Blob{Key: key, Value: value, Version: 1, UpdatedAt: now}).Error
	if err != nil {
		return 0, fmt.Errorf("put blob %s: %w", key, err)
	}

	var versions []int64
	if err := tx.Model(&models.Blob{}).Where("blob_key = ?", key).Pluck("version", &versions).Error; err != nil {
		return 0, fmt.Errorf("read version of %s: %w", key, err)
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("put blob %s: row missing after write", key)
	}
	return versions[0], nil
}

// DeletePrefix 删除所有以 prefix 开头的键，prefix 中的 LIKE 通配符按字面匹配
func (s *BlobStore) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("refusing to delete with empty prefix")
	}
	pattern := likeEscaper.Replace(prefix) + "%"
	err := s.db.WithContext(ctx).Where(`blob_key LIKE ? ESCAPE '\'`, pattern).Delete(&models.Blob{}).Error
	if err != nil {
		return fmt.Errorf("delete blobs %s*: %w", prefix, err)
	}
	return nil
}

// All 按键名顺序返回全部记录，用于导出
func (s *BlobStore) All(ctx context.Context) ([]models.Blob, error) {
	var blobs []models.Blob
	if err := s.db.WithContext(ctx).Order("blob_key ASC").Find(&blobs).Error; err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	return blobs, nil
}
