// Package domain contains the reference-data models shared by the loader:
// the site-type to detail-table mapping and the sites table.
package domain

import (
	"context"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
	"gorm.io/gorm"
)

// SiteTypeDetail maps a site type to the name of its detail table. The sites
// table carries a foreign key to this mapping, so the mapping row must exist
// before any site of that type.
type SiteTypeDetail struct {
	SiteType        string `gorm:"column:site_type;primaryKey"`
	DetailTableName string `gorm:"column:detail_table_name;not null"`
}

func (SiteTypeDetail) TableName() string { return "site_type_detail" }

// Site is a named compute resource/provider, unique per (site_type, description).
type Site struct {
	SiteID      int64  `gorm:"column:site_id;primaryKey;autoIncrement"`
	SiteType    string `gorm:"column:site_type;not null;uniqueIndex:uq_sites_type_description"`
	Description string `gorm:"column:description;not null;uniqueIndex:uq_sites_type_description"`
}

func (Site) TableName() string { return "sites" }

// Repository resolves reference rows inside the caller's transaction so the
// auto-generated ids are visible to the fact/detail inserts that follow.
type Repository interface {
	// EnsureTypeMapping inserts the site_type -> detail table mapping if
	// absent and returns the detail table name.
	EnsureTypeMapping(ctx context.Context, tx *gorm.DB, siteType convertdomain.PayloadType) (string, error)
	// GetOrCreateSite returns the site id for (siteType, description),
	// creating the row on first sight.
	GetOrCreateSite(ctx context.Context, tx *gorm.DB, siteType convertdomain.PayloadType, description string) (int64, error)
}
