package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"outbreak-dashboard/config"
	"outbreak-dashboard/models"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// ErrStoreUnavailable indicates the persistence layer cannot be reached.
// Callers should treat it as retryable.
var ErrStoreUnavailable = errors.New("report store unavailable")

// Database handles all read access to the report store. The service never
// writes to the reports table; classification is done by an external pipeline.
type Database struct {
	db  *sql.DB
	cfg *config.Config
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrStoreUnavailable, err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrStoreUnavailable, err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("Database connected successfully to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Database{db: db, cfg: cfg}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB, cfg *config.Config) *Database {
	return &Database{db: db, cfg: cfg}
}

// DB exposes the underlying database handle for wiring
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

const reportColumns = `id, user_id, latitude, longitude, created_at,
			country, state, district,
			ai_label, ai_confidence, ai_risk_score, ai_tags, ai_analysed_at`

// GetPublicReports retrieves reports within a trailing window of days in the
// public projection: no submitter reference, no raw media.
func (d *Database) GetPublicReports(ctx context.Context, windowDays int) ([]models.PublicReport, error) {
	query := `
		SELECT
			id, latitude, longitude, created_at,
			country, state, district,
			ai_label, ai_confidence, ai_risk_score, ai_tags, ai_analysed_at
		FROM reports
		WHERE created_at >= ?
		ORDER BY created_at DESC
	`

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	rows, err := d.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query public reports: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var reports []models.PublicReport
	for rows.Next() {
		var (
			r        models.PublicReport
			lat, lng sql.NullFloat64
			country  sql.NullString
			state    sql.NullString
			district sql.NullString
			label    sql.NullString
			conf     sql.NullFloat64
			risk     sql.NullFloat64
			tags     sql.NullString
			analysed sql.NullTime
		)
		if err := rows.Scan(&r.ID, &lat, &lng, &r.CreatedAt,
			&country, &state, &district,
			&label, &conf, &risk, &tags, &analysed); err != nil {
			log.Warnf("Skipping unscannable public report row: %v", err)
			continue
		}
		r.Latitude = nullFloat(lat)
		r.Longitude = nullFloat(lng)
		r.Country = nullString(country)
		r.State = nullString(state)
		r.District = nullString(district)
		r.AILabel = nullString(label)
		r.AIConfidence = nullFloat(conf)
		r.AIRiskScore = nullFloat(risk)
		if analysed.Valid {
			t := analysed.Time
			r.AIAnalysedAt = &t
		}
		if tags.Valid {
			if parsed, perr := models.ParseTags(tags.String); perr == nil {
				r.Species = models.SpeciesFromTags(parsed)
			}
		}
		reports = append(reports, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating public reports: %v", ErrStoreUnavailable, err)
	}

	return reports, nil
}

// GetAnalysedReportsWithin retrieves the cluster-eligible report set in the
// full projection: AI-analysed, with coordinates, created within a trailing
// window of days. Rows violating the classification atomicity invariant are
// skipped and logged, never fatal.
func (d *Database) GetAnalysedReportsWithin(ctx context.Context, days int) ([]models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE ai_analysed_at IS NOT NULL
		AND latitude IS NOT NULL
		AND longitude IS NOT NULL
		AND created_at >= ?
		ORDER BY created_at ASC
	`

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := d.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query analysed reports: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return d.collectReports(rows)
}

// GetAnalysedReportsSince retrieves analysed reports with id greater than
// sinceID, in id order. Used by the watch loop.
func (d *Database) GetAnalysedReportsSince(ctx context.Context, sinceID int64) ([]models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE ai_analysed_at IS NOT NULL
		AND id > ?
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, sinceID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query reports since id %d: %v", ErrStoreUnavailable, sinceID, err)
	}
	defer rows.Close()

	return d.collectReports(rows)
}

// GetLatestAnalysedID returns the highest id among analysed reports.
func (d *Database) GetLatestAnalysedID(ctx context.Context) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) FROM reports WHERE ai_analysed_at IS NOT NULL").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get latest analysed id: %v", ErrStoreUnavailable, err)
	}
	return id, nil
}

func (d *Database) collectReports(rows *sql.Rows) ([]models.Report, error) {
	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			log.Warnf("Skipping unscannable report row: %v", err)
			continue
		}
		if r.PartiallyAnalysed() {
			log.Warnf("Skipping malformed report %d: partial classification fields", r.ID)
			continue
		}
		reports = append(reports, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating reports: %v", ErrStoreUnavailable, err)
	}

	return reports, nil
}

func scanReport(rows *sql.Rows) (*models.Report, error) {
	var (
		r        models.Report
		lat, lng sql.NullFloat64
		country  sql.NullString
		state    sql.NullString
		district sql.NullString
		label    sql.NullString
		conf     sql.NullFloat64
		risk     sql.NullFloat64
		tags     sql.NullString
		analysed sql.NullTime
	)
	if err := rows.Scan(&r.ID, &r.UserID, &lat, &lng, &r.CreatedAt,
		&country, &state, &district,
		&label, &conf, &risk, &tags, &analysed); err != nil {
		return nil, err
	}
	r.Latitude = nullFloat(lat)
	r.Longitude = nullFloat(lng)
	r.Country = nullString(country)
	r.State = nullString(state)
	r.District = nullString(district)
	r.AILabel = nullString(label)
	r.AIConfidence = nullFloat(conf)
	r.AIRiskScore = nullFloat(risk)
	r.AITags = nullString(tags)
	if analysed.Valid {
		t := analysed.Time
		r.AIAnalysedAt = &t
	}
	return &r, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
