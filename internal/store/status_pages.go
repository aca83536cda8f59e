package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fuomag9/uptimed/internal/models"
)

// CreateStatusPage inserts a status page. The slug must not be taken.
func (s *Store) CreateStatusPage(ctx context.Context, page *models.StatusPage) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.StatusPage{}).Where("slug = ?", page.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return tx.Create(page).Error
	})
	if err != nil {
		return fmt.Errorf("Store.CreateStatusPage: %w", err)
	}
	return nil
}

// UpdateStatusPage overwrites the page identified by page.ID.
func (s *Store) UpdateStatusPage(ctx context.Context, page *models.StatusPage) error {
	result := s.db.WithContext(ctx).Save(page)
	if result.Error != nil {
		return fmt.Errorf("Store.UpdateStatusPage: %w", result.Error)
	}
	return nil
}

// CountStatusPages counts every status page.
func (s *Store) CountStatusPages(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.StatusPage{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("Store.CountStatusPages: %w", err)
	}
	return count, nil
}

// GetStatusPageBySlug loads a status page by slug.
func (s *Store) GetStatusPageBySlug(ctx context.Context, slug string) (*models.StatusPage, error) {
	var page models.StatusPage
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&page).Error; err != nil {
		return nil, fmt.Errorf("Store.GetStatusPageBySlug: %w", notFound(err))
	}
	return &page, nil
}

// ListStatusPages returns every status page ordered by slug.
func (s *Store) ListStatusPages(ctx context.Context) ([]models.StatusPage, error) {
	var pages []models.StatusPage
	if err := s.db.WithContext(ctx).Order("slug ASC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("Store.ListStatusPages: %w", err)
	}
	return pages, nil
}
