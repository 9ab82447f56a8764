package reference

import (
	"context"
	"fmt"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
	"github.com/greendigit/cnr-ingest/internal/reference/domain"
	"gorm.io/gorm"
)

// Session deduplicates reference lookups within one loading run. It is owned
// by the loader, constructed per run and discarded at the end; after a
// rollback the cached ids no longer reference committed rows, so the loader
// must Invalidate it at the rollback boundary.
//
// Not safe for concurrent use: the loader resolves reference data on a single
// logical transaction at a time.
type Session struct {
	repo domain.Repository

	sites    map[siteKey]int64
	mappings map[convertdomain.PayloadType]string
}

type siteKey struct {
	siteType    convertdomain.PayloadType
	description string
}

func NewSession(repo domain.Repository) *Session {
	return &Session{
		repo:     repo,
		sites:    make(map[siteKey]int64),
		mappings: make(map[convertdomain.PayloadType]string),
	}
}

// EnsureTypeMapping must run before GetOrCreateSite for the same type: the
// persistent schema's foreign key requires the mapping row first.
func (s *Session) EnsureTypeMapping(ctx context.Context, tx *gorm.DB, siteType convertdomain.PayloadType) (string, error) {
	if table, ok := s.mappings[siteType]; ok {
		return table, nil
	}
	table, err := s.repo.EnsureTypeMapping(ctx, tx, siteType)
	if err != nil {
		return "", err
	}
	s.mappings[siteType] = table
	return table, nil
}

func (s *Session) GetOrCreateSite(ctx context.Context, tx *gorm.DB, siteType convertdomain.PayloadType, description string) (int64, error) {
	if _, ok := s.mappings[siteType]; !ok {
		return 0, fmt.Errorf("type mapping for %q not ensured before site resolution", siteType)
	}
	key := siteKey{siteType: siteType, description: description}
	if id, ok := s.sites[key]; ok {
		return id, nil
	}
	id, err := s.repo.GetOrCreateSite(ctx, tx, siteType, description)
	if err != nil {
		return 0, err
	}
	s.sites[key] = id
	return id, nil
}

// Invalidate drops every cached id. Called after a rollback.
func (s *Session) Invalidate() {
	s.sites = make(map[siteKey]int64)
	s.mappings = make(map[convertdomain.PayloadType]string)
}
