package reference

import (
	"context"
	"errors"
	"fmt"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
	"github.com/greendigit/cnr-ingest/internal/reference/domain"
	"github.com/greendigit/cnr-ingest/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUnknownSiteType = errors.New("unknown_site_type")

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

// EnsureTypeMapping is an idempotent insert-if-absent. Concurrent loading
// sessions may race on the same mapping row, so the insert is
// conflict-tolerant rather than lock-based.
func (r *repository) EnsureTypeMapping(ctx context.Context, tx *gorm.DB, siteType convertdomain.PayloadType) (string, error) {
	if !siteType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSiteType, siteType)
	}

	row := domain.SiteTypeDetail{
		SiteType:        string(siteType),
		DetailTableName: siteType.DetailTable(),
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "site_type"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("ensure type mapping %q: %w", siteType, err)
	}
	return row.DetailTableName, nil
}

func (r *repository) GetOrCreateSite(ctx context.Context, tx *gorm.DB, siteType convertdomain.PayloadType, description string) (int64, error) {
	var site domain.Site
	err := tx.WithContext(ctx).
		Where("site_type = ? AND description = ?", string(siteType), description).
		First(&site).Error
	if err == nil {
		return site.SiteID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("lookup site (%s, %s): %w", siteType, description, err)
	}

	site = domain.Site{SiteType: string(siteType), Description: description}
	if err := tx.WithContext(ctx).Create(&site).Error; err != nil {
		// Another session may have created the same (type, description)
		// pair between the lookup and the insert; re-read the winner.
		if db.IsDuplicateKeyErr(err) {
			var existing domain.Site
			lookupErr := tx.WithContext(ctx).
				Where("site_type = ? AND description = ?", string(siteType), description).
				First(&existing).Error
			if lookupErr == nil {
				return existing.SiteID, nil
			}
		}
		return 0, fmt.Errorf("create site (%s, %s): %w", siteType, description, err)
	}
	return site.SiteID, nil
}
