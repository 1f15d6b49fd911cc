package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"adscan/config"
	"adscan/models"
)

// Database wraps the ad store connection. Ads are read-only to the scanner;
// the only table it owns is ad_scan_cache.
type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection and verifies it. An
// unreachable store is a configuration error: callers are expected to abort
// before any batch executes.
func NewDatabase(cfg *config.Config) (*Database, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infof("Connected to database %s on %s:%s", cfg.DBName, cfg.DBHost, cfg.DBPort)
	return &Database{db: db}, nil
}

// NewDatabaseFromConn wraps an existing connection (used by tests).
func NewDatabaseFromConn(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying connection.
func (d *Database) GetDB() *sql.DB {
	return d.db
}

var adColumns = []string{
	"a.id", "a.title", "a.description",
	"COALESCE(co.slug, '')", "COALESCE(ca.slug, '')",
	"a.status", "COALESCE(a.language, 'en')",
	"COALESCE(a.media_type, '')", "COALESCE(a.media_url, '')",
	"COALESCE(a.user_id, '')",
	"a.created_at", "a.updated_at",
}

// defaultScanLimit bounds capped scans when the caller passes a non-positive
// limit. Casting such a limit straight to uint64 would wrap and make the scan
// effectively unbounded.
const defaultScanLimit = 500

func scanLimit(limit int) uint64 {
	if limit <= 0 {
		return defaultScanLimit
	}
	return uint64(limit)
}

func (d *Database) selectAds() sq.SelectBuilder {
	return sq.Select(adColumns...).
		From("ads a").
		LeftJoin("companies co ON co.id = a.company_id").
		LeftJoin("categories ca ON ca.id = a.category_id").
		Where(sq.Eq{"a.status": "active"})
}

// stalePredicate selects ads that need (re-)examination: recently created or
// edited, never scanned, scanned too long ago, or previously flagged. A
// flagged ad is never silently skipped, whatever its cache age.
func stalePredicate(cutoff, ttlCutoff time.Time) sq.Or {
	return sq.Or{
		sq.Gt{"a.created_at": cutoff},
		sq.Gt{"a.updated_at": cutoff},
		sq.Eq{"c.ad_id": nil},
		sq.Lt{"c.last_scanned": ttlCutoff},
		sq.Eq{"c.is_clean": false},
	}
}

// GetAdsIncremental returns the incremental candidate set. Previously flagged
// ads sort first, then newest ads; the ordering is part of the contract.
func (d *Database) GetAdsIncremental(sinceHours int, ttl time.Duration) ([]models.AdRecord, error) {
	now := time.Now()
	cutoff := now.Add(-time.Duration(sinceHours) * time.Hour)

	builder := d.selectAds().
		LeftJoin("ad_scan_cache c ON c.ad_id = a.id").
		Where(stalePredicate(cutoff, now.Add(-ttl))).
		OrderBy("COALESCE(c.is_clean, TRUE) ASC", "a.created_at DESC")

	return d.queryAds(builder)
}

// GetAdsPriority returns the same candidate set as incremental but capped,
// with the least-recently-scanned ads first within the clean/created ordering.
func (d *Database) GetAdsPriority(limit int, ttl time.Duration) ([]models.AdRecord, error) {
	now := time.Now()
	cutoff := now.Add(-ttl)

	builder := d.selectAds().
		LeftJoin("ad_scan_cache c ON c.ad_id = a.id").
		Where(stalePredicate(cutoff, cutoff)).
		OrderBy("COALESCE(c.is_clean, TRUE) ASC", "a.created_at DESC", "c.last_scanned ASC").
		Limit(scanLimit(limit))

	return d.queryAds(builder)
}

// GetAdsFull returns all active ads, capped. Full scans are never unbounded.
func (d *Database) GetAdsFull(limit int) ([]models.AdRecord, error) {
	builder := d.selectAds().
		OrderBy("a.created_at DESC").
		Limit(scanLimit(limit))

	return d.queryAds(builder)
}

// GetAd returns one active ad by id, or nil when it does not exist.
func (d *Database) GetAd(adID int64) (*models.AdRecord, error) {
	builder := d.selectAds().Where(sq.Eq{"a.id": adID})

	ads, err := d.queryAds(builder)
	if err != nil {
		return nil, err
	}
	if len(ads) == 0 {
		return nil, nil
	}
	return &ads[0], nil
}

// GetAdsByCompany returns active ads of one company, newest first.
func (d *Database) GetAdsByCompany(slug string, limit int) ([]models.AdRecord, error) {
	builder := d.selectAds().
		Where(sq.Eq{"co.slug": slug}).
		OrderBy("a.created_at DESC").
		Limit(scanLimit(limit))

	return d.queryAds(builder)
}

// GetAdsByCategory returns active ads of one category, newest first.
func (d *Database) GetAdsByCategory(slug string, limit int) ([]models.AdRecord, error) {
	builder := d.selectAds().
		Where(sq.Eq{"ca.slug": slug}).
		OrderBy("a.created_at DESC").
		Limit(scanLimit(limit))

	return d.queryAds(builder)
}

// CountActiveAds returns the number of active ads in the store.
func (d *Database) CountActiveAds() (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM ads WHERE status = 'active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active ads: %w", err)
	}
	return count, nil
}

func (d *Database) queryAds(builder sq.SelectBuilder) ([]models.AdRecord, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ad query: %w", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ads: %w", err)
	}
	defer rows.Close()

	var ads []models.AdRecord
	for rows.Next() {
		var ad models.AdRecord
		if err := rows.Scan(
			&ad.ID, &ad.Title, &ad.Description,
			&ad.CompanySlug, &ad.Category,
			&ad.Status, &ad.Language,
			&ad.MediaType, &ad.MediaURL,
			&ad.UserID,
			&ad.CreatedAt, &ad.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ad row: %w", err)
		}
		ads = append(ads, ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ad rows: %w", err)
	}

	return ads, nil
}
