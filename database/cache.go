package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"

	"adscan/models"
)

// CacheStore persists last-scan metadata per ad. One row per ad, overwritten
// on every scan; rows only disappear through explicit invalidation.
type CacheStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewCacheStore wires a cache store over the shared connection.
func NewCacheStore(db *sql.DB, ttl time.Duration) *CacheStore {
	return &CacheStore{db: db, ttl: ttl}
}

// TTL returns the freshness window after which a clean verdict must be
// re-verified.
func (s *CacheStore) TTL() time.Duration {
	return s.ttl
}

// CreateScanCacheTable creates the ad_scan_cache table if it doesn't exist.
func (s *CacheStore) CreateScanCacheTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS ad_scan_cache (
			ad_id BIGINT NOT NULL PRIMARY KEY,
			last_scanned TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			verdict JSON,
			content_hash VARCHAR(64) NOT NULL DEFAULT '',
			is_clean BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_scan_cache_clean_scanned (is_clean, last_scanned)
		)`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create ad_scan_cache table: %w", err)
	}
	return nil
}

// Get returns the cache entry for an ad, or nil when the ad was never scanned.
func (s *CacheStore) Get(adID int64) (*models.CacheEntry, error) {
	query := `SELECT ad_id, last_scanned, COALESCE(verdict, ''), content_hash, is_clean FROM ad_scan_cache WHERE ad_id = ?`

	var entry models.CacheEntry
	err := s.db.QueryRow(query, adID).Scan(
		&entry.AdID, &entry.LastScanned, &entry.Verdict, &entry.ContentHash, &entry.IsClean)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry for ad %d: %w", adID, err)
	}
	return &entry, nil
}

// CanSkip reports whether an ad can be skipped without re-scanning: only a
// clean entry younger than the TTL qualifies. A flagged entry never does.
func (s *CacheStore) CanSkip(entry *models.CacheEntry) bool {
	if entry == nil || !entry.IsClean {
		return false
	}
	return time.Since(entry.LastScanned) < s.ttl
}

// Upsert writes the cache entry for an ad as a single atomic row write,
// last-writer-wins.
func (s *CacheStore) Upsert(adID int64, verdict *models.ModerationVerdict, contentHash string, isClean bool) error {
	serialized, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict for ad %d: %w", adID, err)
	}

	query := `INSERT INTO ad_scan_cache (ad_id, last_scanned, verdict, content_hash, is_clean)
	          VALUES (?, ?, ?, ?, ?)
	          ON DUPLICATE KEY UPDATE last_scanned = VALUES(last_scanned),
	                                  verdict = VALUES(verdict),
	                                  content_hash = VALUES(content_hash),
	                                  is_clean = VALUES(is_clean)`

	if _, err := s.db.Exec(query, adID, time.Now().UTC(), string(serialized), contentHash, isClean); err != nil {
		return fmt.Errorf("failed to upsert cache entry for ad %d: %w", adID, err)
	}
	return nil
}

// Invalidate deletes the cache entry for one ad to force a rescan.
func (s *CacheStore) Invalidate(adID int64) error {
	if _, err := s.db.Exec(`DELETE FROM ad_scan_cache WHERE ad_id = ?`, adID); err != nil {
		return fmt.Errorf("failed to invalidate cache entry for ad %d: %w", adID, err)
	}
	log.Infof("Invalidated scan cache for ad %d", adID)
	return nil
}

// InvalidateOlderThan deletes entries older than the given number of days;
// days=0 clears the whole cache. Returns the number of deleted rows.
func (s *CacheStore) InvalidateOlderThan(days int) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if days <= 0 {
		result, err = s.db.Exec(`DELETE FROM ad_scan_cache`)
	} else {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		result, err = s.db.Exec(`DELETE FROM ad_scan_cache WHERE last_scanned < ?`, cutoff)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get invalidation row count: %w", err)
	}
	log.Infof("Invalidated %d scan cache entries (older than %d days)", rows, days)
	return rows, nil
}

// CountEntries returns total and flagged cache row counts for status reporting.
func (s *CacheStore) CountEntries() (total int, flagged int, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(is_clean = FALSE), 0) FROM ad_scan_cache`).Scan(&total, &flagged)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return total, flagged, nil
}
