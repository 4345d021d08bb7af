package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// PageStore implements seo.PageStore using Postgres.
type PageStore struct {
	db    Querier
	clock seo.Clock
}

// NewPageStore creates a PageStore on an existing pool.
func NewPageStore(db Querier, clock seo.Clock) *PageStore {
	return &PageStore{db: db, clock: clock}
}

// UpsertPage updates the row keyed on (site id, path), inserting it with
// first_seen set when no row exists. first_seen is never overwritten.
func (s *PageStore) UpsertPage(ctx context.Context, rec seo.PageRecord) (bool, error) {
	schemaTypes, err := json.Marshal(rec.SchemaTypes)
	if err != nil {
		return false, fmt.Errorf("marshal schema types: %w", err)
	}
	now := s.clock.Now()

	update := `
		UPDATE pages
		SET url = $3, title = $4, title_length = $5,
			meta_description = $6, meta_description_length = $7,
			h1 = $8, h1_count = $9, canonical_url = $10, robots = $11,
			word_count = $12, internal_links = $13, external_links = $14,
			image_count = $15, images_missing_alt = $16,
			has_schema = $17, schema_types = $18,
			og_title = $19, og_description = $20, og_image = $21,
			health_score = $22, last_crawled = $23
		WHERE site_id = $1 AND path = $2;
	`
	args := []any{
		rec.SiteID, rec.Path, rec.URL, rec.Title, rec.TitleLength,
		rec.MetaDescription, rec.MetaDescriptionLength,
		rec.H1, rec.H1Count, rec.CanonicalURL, rec.Robots,
		rec.WordCount, rec.InternalLinks, rec.ExternalLinks,
		rec.ImageCount, rec.ImagesMissingAlt,
		rec.HasSchema, schemaTypes,
		rec.OGTitle, rec.OGDescription, rec.OGImage,
		rec.HealthScore, now,
	}
	tag, err := s.db.Exec(ctx, update, args...)
	if err != nil {
		return false, fmt.Errorf("update page (%s, %s): %w", rec.SiteID, rec.Path, err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	insert := `
		INSERT INTO pages (
			site_id, path, url, title, title_length,
			meta_description, meta_description_length,
			h1, h1_count, canonical_url, robots,
			word_count, internal_links, external_links,
			image_count, images_missing_alt,
			has_schema, schema_types,
			og_title, og_description, og_image,
			health_score, last_crawled, first_seen
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
		)
		ON CONFLICT (site_id, path) DO NOTHING;
	`
	args = append(args, now)
	if _, err := s.db.Exec(ctx, insert, args...); err != nil {
		return false, fmt.Errorf("insert page (%s, %s): %w", rec.SiteID, rec.Path, err)
	}
	return true, nil
}

// GetPage retrieves a page record by (site id, path).
func (s *PageStore) GetPage(ctx context.Context, siteID, path string) (seo.PageRecord, error) {
	query := `
		SELECT site_id, path, url, title, title_length,
			meta_description, meta_description_length,
			h1, h1_count, canonical_url, robots,
			word_count, internal_links, external_links,
			image_count, images_missing_alt,
			has_schema, schema_types,
			og_title, og_description, og_image,
			health_score, last_crawled, first_seen
		FROM pages
		WHERE site_id = $1 AND path = $2;
	`
	var (
		rec         seo.PageRecord
		schemaTypes []byte
	)
	err := s.db.QueryRow(ctx, query, siteID, path).Scan(
		&rec.SiteID, &rec.Path, &rec.URL, &rec.Title, &rec.TitleLength,
		&rec.MetaDescription, &rec.MetaDescriptionLength,
		&rec.H1, &rec.H1Count, &rec.CanonicalURL, &rec.Robots,
		&rec.WordCount, &rec.InternalLinks, &rec.ExternalLinks,
		&rec.ImageCount, &rec.ImagesMissingAlt,
		&rec.HasSchema, &schemaTypes,
		&rec.OGTitle, &rec.OGDescription, &rec.OGImage,
		&rec.HealthScore, &rec.LastCrawled, &rec.FirstSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.PageRecord{}, seo.ErrNotFound
	}
	if err != nil {
		return seo.PageRecord{}, fmt.Errorf("get page (%s, %s): %w", siteID, path, err)
	}
	if len(schemaTypes) > 0 {
		if err := json.Unmarshal(schemaTypes, &rec.SchemaTypes); err != nil {
			return seo.PageRecord{}, fmt.Errorf("decode schema types: %w", err)
		}
	}
	return rec, nil
}
