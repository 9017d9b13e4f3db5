// Package sqliterepo is the reference implementation of
// pkg/repository.Repository, backed by modernc.org/sqlite. Grounded on
// banshee-data-velocity.report's db package: a DB struct embedding *sql.DB,
// inline schema managed through golang-migrate rather than ad hoc
// CREATE TABLE IF NOT EXISTS calls (the migrations/ directory supersedes
// that part of the teacher's idiom once a real schema needs versioning),
// and manual Scan-based query helpers.
package sqliterepo

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
	"github.com/aforos-core/rilsa-engine/pkg/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlite connection the way banshee's db.DB wraps its own.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the sqlite database at path and migrates it to
// the latest schema version.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db := &DB{DB: sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m.Close() is skipped: the sqlite driver's Close() would close the
	// *sql.DB this DB owns and shares with every query path below.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("iofs source driver: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("new migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[migrate] "+format, v...) }
func (l *migrateLogger) Verbose() bool                          { return false }

// Repository implements pkg/repository.Repository over a *DB.
type Repository struct {
	db *DB
}

// New wraps an already-open, already-migrated DB as a repository.Repository.
func New(db *DB) *Repository {
	return &Repository{db: db}
}

var _ repository.Repository = (*Repository)(nil)

// --- detections -------------------------------------------------------

type detectionStream struct {
	rows *sql.Rows
}

func (s *detectionStream) Next(ctx context.Context) (aforo.Detection, bool, error) {
	if err := ctx.Err(); err != nil {
		return aforo.Detection{}, false, err
	}
	if !s.rows.Next() {
		return aforo.Detection{}, false, s.rows.Err()
	}
	var d aforo.Detection
	var trackHint sql.NullInt64
	if err := s.rows.Scan(&d.FrameID, &trackHint, &d.X, &d.Y, &d.Class, &d.Confidence); err != nil {
		return aforo.Detection{}, false, err
	}
	if trackHint.Valid {
		v := int(trackHint.Int64)
		d.TrackHint = &v
	}
	return d, true, nil
}

func (s *detectionStream) Close() error { return s.rows.Close() }

func (r *Repository) LoadDetections(ctx context.Context, datasetID string) (repository.DetectionStream, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT frame_id, track_hint, x, y, class, confidence
		FROM detections WHERE dataset_id = ? ORDER BY frame_id ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load detections: %w", err)
	}
	return &detectionStream{rows: rows}, nil
}

// --- config -------------------------------------------------------------

func (r *Repository) LoadConfig(ctx context.Context, datasetID string) (repository.DatasetConfig, error) {
	var cfg repository.DatasetConfig

	var baseTime time.Time
	err := r.db.QueryRowContext(ctx, `SELECT base_time FROM datasets WHERE dataset_id = ?`, datasetID).Scan(&baseTime)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("load dataset base_time: %w", err)
	}
	cfg.BaseTime = baseTime

	accessRows, err := r.db.QueryContext(ctx, `
		SELECT access_id, cardinal, x, y, polygon_json, gate_json
		FROM accesses WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return cfg, fmt.Errorf("load accesses: %w", err)
	}
	defer accessRows.Close()
	for accessRows.Next() {
		var ap aforo.AccessPoint
		var cardinal string
		var polygonJSON, gateJSON sql.NullString
		if err := accessRows.Scan(&ap.ID, &cardinal, &ap.X, &ap.Y, &polygonJSON, &gateJSON); err != nil {
			return cfg, fmt.Errorf("scan access: %w", err)
		}
		ap.Cardinal = aforo.Cardinal(cardinal)
		if polygonJSON.Valid && polygonJSON.String != "" {
			if err := json.Unmarshal([]byte(polygonJSON.String), &ap.Polygon); err != nil {
				return cfg, fmt.Errorf("decode polygon for %s: %w", ap.ID, err)
			}
		}
		if gateJSON.Valid && gateJSON.String != "" {
			var gate aforo.LineSegment
			if err := json.Unmarshal([]byte(gateJSON.String), &gate); err != nil {
				return cfg, fmt.Errorf("decode gate for %s: %w", ap.ID, err)
			}
			ap.Gate = &gate
		}
		cfg.Accesses = append(cfg.Accesses, ap)
	}
	if err := accessRows.Err(); err != nil {
		return cfg, err
	}

	ruleRows, err := r.db.QueryContext(ctx, `SELECT origin, dest, code FROM rilsa_rules WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return cfg, fmt.Errorf("load rilsa rules: %w", err)
	}
	defer ruleRows.Close()
	rules := make(map[aforo.CardinalPair]string)
	for ruleRows.Next() {
		var origin, dest, code string
		if err := ruleRows.Scan(&origin, &dest, &code); err != nil {
			return cfg, fmt.Errorf("scan rilsa rule: %w", err)
		}
		rules[aforo.CardinalPair{Origin: aforo.Cardinal(origin), Dest: aforo.Cardinal(dest)}] = code
	}
	if err := ruleRows.Err(); err != nil {
		return cfg, err
	}
	cfg.RuleMap = aforo.RilsaRuleMap{Rules: rules}

	forbiddenRows, err := r.db.QueryContext(ctx, `SELECT rilsa_code, description FROM forbidden_movements WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return cfg, fmt.Errorf("load forbidden movements: %w", err)
	}
	defer forbiddenRows.Close()
	for forbiddenRows.Next() {
		var fm aforo.ForbiddenMovement
		if err := forbiddenRows.Scan(&fm.RilsaCode, &fm.Description); err != nil {
			return cfg, fmt.Errorf("scan forbidden movement: %w", err)
		}
		cfg.ForbiddenMovements = append(cfg.ForbiddenMovements, fm)
	}
	if err := forbiddenRows.Err(); err != nil {
		return cfg, err
	}

	var s aforo.AnalysisSettings
	err = r.db.QueryRowContext(ctx, `
		SELECT interval_minutes, min_length_meters, max_direction_changes, min_net_over_path_ratio, pixel_to_meter, ttc_threshold_seconds
		FROM analysis_settings WHERE dataset_id = ?`, datasetID).Scan(
		&s.IntervalMinutes, &s.MinLengthMeters, &s.MaxDirectionChanges, &s.MinNetOverPathRatio, &s.PixelToMeter, &s.TTCThresholdSeconds)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("load analysis settings: %w", err)
	}
	cfg.AnalysisSettings = s

	return cfg, nil
}

// --- corrections ----------------------------------------------------------

func (r *Repository) LoadCorrections(ctx context.Context, datasetID string) (map[string]aforo.TrajectoryCorrection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT track_id, new_origin, new_dest, new_class, discard, hide_in_report
		FROM corrections WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load corrections: %w", err)
	}
	defer rows.Close()

	out := make(map[string]aforo.TrajectoryCorrection)
	for rows.Next() {
		var c aforo.TrajectoryCorrection
		var newOrigin, newDest, newClass sql.NullString
		if err := rows.Scan(&c.TrackID, &newOrigin, &newDest, &newClass, &c.Discard, &c.HideInReport); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		if newOrigin.Valid {
			v := aforo.Cardinal(newOrigin.String)
			c.NewOrigin = &v
		}
		if newDest.Valid {
			v := aforo.Cardinal(newDest.String)
			c.NewDest = &v
		}
		if newClass.Valid {
			v := newClass.String
			c.NewClass = &v
		}
		out[c.TrackID] = c
	}
	return out, rows.Err()
}

// --- events -----------------------------------------------------------

func (r *Repository) ReplaceEvents(ctx context.Context, datasetID string, events []aforo.TrajectoryEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM revisions WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clear revisions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	for _, e := range events {
		if err := insertEvent(ctx, tx, datasetID, e); err != nil {
			return err
		}
		if err := insertRevisions(ctx, tx, datasetID, e.TrackID, e.Revisions); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) UpsertEvent(ctx context.Context, datasetID string, event aforo.TrajectoryEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE dataset_id = ? AND track_id = ?`, datasetID, event.TrackID); err != nil {
		return fmt.Errorf("clear prior event: %w", err)
	}
	if err := insertEvent(ctx, tx, datasetID, event); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM revisions WHERE dataset_id = ? AND track_id = ?`, datasetID, event.TrackID); err != nil {
		return fmt.Errorf("clear prior revisions: %w", err)
	}
	if err := insertRevisions(ctx, tx, datasetID, event.TrackID, event.Revisions); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEvent(ctx context.Context, tx *sql.Tx, datasetID string, e aforo.TrajectoryEvent) error {
	positionsJSON, err := json.Marshal(e.Positions)
	if err != nil {
		return fmt.Errorf("encode positions for %s: %w", e.TrackID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (
			dataset_id, track_id, class, origin_cardinal, destination_cardinal, rilsa_code,
			frame_entry, frame_exit, timestamp_entry, timestamp_exit, positions_json, confidence,
			hide_in_report, discarded, forbidden, forbidden_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		datasetID, e.TrackID, e.Class, string(e.OriginCardinal), string(e.DestinationCardinal), e.RilsaCode,
		e.FrameEntry, e.FrameExit, e.TimestampEntry, e.TimestampExit, string(positionsJSON), e.Confidence,
		e.HideInReport, e.Discarded, e.Forbidden, e.ForbiddenReason)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.TrackID, err)
	}
	return nil
}

func insertRevisions(ctx context.Context, tx *sql.Tx, datasetID, trackID string, revisions []aforo.Revision) error {
	for _, rev := range revisions {
		changesJSON, err := json.Marshal(rev.Changes)
		if err != nil {
			return fmt.Errorf("encode revision changes for %s: %w", trackID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO revisions (dataset_id, track_id, version, changes_json, changed_by, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			datasetID, trackID, rev.Version, string(changesJSON), rev.ChangedBy, rev.Timestamp)
		if err != nil {
			return fmt.Errorf("insert revision %d for %s: %w", rev.Version, trackID, err)
		}
	}
	return nil
}

func (r *Repository) AppendRevision(ctx context.Context, datasetID, trackID string, revision aforo.Revision) error {
	changesJSON, err := json.Marshal(revision.Changes)
	if err != nil {
		return fmt.Errorf("encode revision changes for %s: %w", trackID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO revisions (dataset_id, track_id, version, changes_json, changed_by, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		datasetID, trackID, revision.Version, string(changesJSON), revision.ChangedBy, revision.Timestamp)
	if err != nil {
		return fmt.Errorf("insert revision %d for %s: %w", revision.Version, trackID, err)
	}
	return nil
}

// --- movement counts ------------------------------------------------------

func (r *Repository) ReplaceMovementCounts(ctx context.Context, datasetID string, counts []aforo.MovementCount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM movement_counts WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clear movement counts: %w", err)
	}
	for _, c := range counts {
		countsJSON, err := json.Marshal(c.CountsByClass)
		if err != nil {
			return fmt.Errorf("encode counts for %s: %w", c.RilsaCode, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO movement_counts (dataset_id, rilsa_code, interval_start, interval_end, counts_json)
			VALUES (?, ?, ?, ?, ?)`,
			datasetID, c.RilsaCode, c.IntervalStart, c.IntervalEnd, string(countsJSON))
		if err != nil {
			return fmt.Errorf("insert movement count %s: %w", c.RilsaCode, err)
		}
	}
	return tx.Commit()
}

func (r *Repository) GetIntervals(ctx context.Context, datasetID string) ([]aforo.MovementCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rilsa_code, interval_start, interval_end, counts_json
		FROM movement_counts WHERE dataset_id = ? ORDER BY interval_start ASC, rilsa_code ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load intervals: %w", err)
	}
	defer rows.Close()

	var out []aforo.MovementCount
	for rows.Next() {
		var c aforo.MovementCount
		var countsJSON string
		if err := rows.Scan(&c.RilsaCode, &c.IntervalStart, &c.IntervalEnd, &countsJSON); err != nil {
			return nil, fmt.Errorf("scan movement count: %w", err)
		}
		c.DatasetID = datasetID
		if err := json.Unmarshal([]byte(countsJSON), &c.CountsByClass); err != nil {
			return nil, fmt.Errorf("decode counts for %s: %w", c.RilsaCode, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- history ------------------------------------------------------------

func (r *Repository) RecordHistory(ctx context.Context, datasetID, action string, details map[string]string) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode history details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO history (dataset_id, action, details_json, timestamp) VALUES (?, ?, ?, ?)`,
		datasetID, action, string(detailsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// --- read API --------------------------------------------------------

func (r *Repository) GetEvents(ctx context.Context, datasetID string, filter repository.EventFilter, paging repository.Paging) ([]aforo.TrajectoryEvent, int, error) {
	where := []string{"dataset_id = ?"}
	args := []interface{}{datasetID}

	if !filter.IncludeDiscarded {
		where = append(where, "discarded = 0")
	}
	if filter.Class != "" {
		where = append(where, "class = ?")
		args = append(args, filter.Class)
	}
	if filter.OriginCardinal != "" {
		where = append(where, "origin_cardinal = ?")
		args = append(args, filter.OriginCardinal)
	}
	if filter.RilsaCode != "" {
		where = append(where, "rilsa_code = ?")
		args = append(args, filter.RilsaCode)
	}
	if filter.TrackIDPrefix != "" {
		where = append(where, "track_id LIKE ?")
		args = append(args, filter.TrackIDPrefix+"%")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM events WHERE " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := `
		SELECT track_id, class, origin_cardinal, destination_cardinal, rilsa_code, frame_entry, frame_exit,
			timestamp_entry, timestamp_exit, positions_json, confidence, hide_in_report, discarded,
			forbidden, forbidden_reason
		FROM events WHERE ` + whereClause + ` ORDER BY timestamp_exit ASC, track_id ASC`
	queryArgs := append([]interface{}{}, args...)
	if paging.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		queryArgs = append(queryArgs, paging.Limit, paging.Skip)
	} else if paging.Skip > 0 {
		query += " LIMIT -1 OFFSET ?"
		queryArgs = append(queryArgs, paging.Skip)
	}

	rows, err := r.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []aforo.TrajectoryEvent
	for rows.Next() {
		var e aforo.TrajectoryEvent
		var origin, dest, positionsJSON string
		if err := rows.Scan(&e.TrackID, &e.Class, &origin, &dest, &e.RilsaCode, &e.FrameEntry, &e.FrameExit,
			&e.TimestampEntry, &e.TimestampExit, &positionsJSON, &e.Confidence, &e.HideInReport, &e.Discarded,
			&e.Forbidden, &e.ForbiddenReason); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		e.OriginCardinal = aforo.Cardinal(origin)
		e.DestinationCardinal = aforo.Cardinal(dest)
		if err := json.Unmarshal([]byte(positionsJSON), &e.Positions); err != nil {
			return nil, 0, fmt.Errorf("decode positions for %s: %w", e.TrackID, err)
		}
		revisions, err := loadRevisions(ctx, r.db.DB, datasetID, e.TrackID)
		if err != nil {
			return nil, 0, err
		}
		e.Revisions = revisions
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func loadRevisions(ctx context.Context, db *sql.DB, datasetID, trackID string) ([]aforo.Revision, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT version, changes_json, changed_by, timestamp
		FROM revisions WHERE dataset_id = ? AND track_id = ? ORDER BY version ASC`, datasetID, trackID)
	if err != nil {
		return nil, fmt.Errorf("load revisions for %s: %w", trackID, err)
	}
	defer rows.Close()

	var out []aforo.Revision
	for rows.Next() {
		var rev aforo.Revision
		var changesJSON string
		if err := rows.Scan(&rev.Version, &changesJSON, &rev.ChangedBy, &rev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		if err := json.Unmarshal([]byte(changesJSON), &rev.Changes); err != nil {
			return nil, fmt.Errorf("decode revision changes: %w", err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// --- violations / conflicts / QC summary / history (§6.4 supplement) ------

func (r *Repository) GetViolations(ctx context.Context, datasetID string) (repository.ViolationsSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rilsa_code, forbidden_reason, COUNT(*)
		FROM events WHERE dataset_id = ? AND discarded = 0 AND forbidden = 1
		GROUP BY rilsa_code, forbidden_reason`, datasetID)
	if err != nil {
		return repository.ViolationsSummary{}, fmt.Errorf("load violations: %w", err)
	}
	defer rows.Close()

	var summary repository.ViolationsSummary
	for rows.Next() {
		var v repository.ViolationCount
		if err := rows.Scan(&v.RilsaCode, &v.Description, &v.Count); err != nil {
			return repository.ViolationsSummary{}, fmt.Errorf("scan violation: %w", err)
		}
		summary.ByMovement = append(summary.ByMovement, v)
		summary.TotalViolations += v.Count
	}
	if err := rows.Err(); err != nil {
		return repository.ViolationsSummary{}, err
	}
	sort.Slice(summary.ByMovement, func(i, j int) bool {
		return summary.ByMovement[i].Count > summary.ByMovement[j].Count
	})
	return summary, nil
}

// GetConflicts pairs up non-discarded events whose [timestampEntry,
// timestampExit] windows overlap within window and whose rilsaCode
// differs. The full fleet of events for a dataset is small enough (one
// rebuild's worth of movements) to pair in memory rather than via a SQL
// self-join.
func (r *Repository) GetConflicts(ctx context.Context, datasetID string, window time.Duration) ([]repository.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT track_id, rilsa_code, timestamp_entry, timestamp_exit
		FROM events WHERE dataset_id = ? AND discarded = 0
		ORDER BY timestamp_entry ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load events for conflicts: %w", err)
	}
	defer rows.Close()

	type window_ struct {
		trackID   string
		rilsaCode string
		start     time.Time
		end       time.Time
	}
	var events []window_
	for rows.Next() {
		var w window_
		if err := rows.Scan(&w.trackID, &w.rilsaCode, &w.start, &w.end); err != nil {
			return nil, fmt.Errorf("scan event for conflicts: %w", err)
		}
		events = append(events, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var conflicts []repository.Conflict
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			a, b := events[i], events[j]
			if a.rilsaCode == b.rilsaCode {
				continue
			}
			overlapStart := a.start
			if b.start.After(overlapStart) {
				overlapStart = b.start
			}
			overlapEnd := a.end
			if b.end.Before(overlapEnd) {
				overlapEnd = b.end
			}
			gap := overlapStart.Sub(overlapEnd)
			if gap > window {
				continue
			}
			if !overlapEnd.After(overlapStart) {
				overlapEnd = overlapStart
			}
			conflicts = append(conflicts, repository.Conflict{
				TrackID1:       a.trackID,
				TrackID2:       b.trackID,
				RilsaCode1:     a.rilsaCode,
				RilsaCode2:     b.rilsaCode,
				OverlapStart:   overlapStart,
				OverlapEnd:     overlapEnd,
				OverlapSeconds: overlapEnd.Sub(overlapStart).Seconds(),
			})
		}
	}
	return conflicts, nil
}

func (r *Repository) GetQCSummary(ctx context.Context, datasetID string) (repository.QCSummary, error) {
	var summary repository.QCSummary
	summary.CountsByClass = map[string]int{}
	summary.CountsByMovement = map[string]int{}
	summary.DiscardedByReason = map[string]int{}

	rows, err := r.db.QueryContext(ctx, `
		SELECT class, rilsa_code FROM events WHERE dataset_id = ? AND discarded = 0`, datasetID)
	if err != nil {
		return summary, fmt.Errorf("load events for qc summary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var class, code string
		if err := rows.Scan(&class, &code); err != nil {
			return summary, fmt.Errorf("scan event for qc summary: %w", err)
		}
		summary.CountsByClass[class]++
		summary.CountsByMovement[code]++
		summary.CountedTracks++
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	var detailsJSON string
	err = r.db.QueryRowContext(ctx, `
		SELECT details_json FROM history
		WHERE dataset_id = ? AND action = 'rebuild'
		ORDER BY seq DESC LIMIT 1`, datasetID).Scan(&detailsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return summary, nil
		}
		return summary, fmt.Errorf("load last rebuild history: %w", err)
	}

	var details map[string]string
	if err := json.Unmarshal([]byte(detailsJSON), &details); err != nil {
		return summary, fmt.Errorf("decode rebuild history details: %w", err)
	}
	if raw, ok := details["totalTracksRaw"]; ok {
		fmt.Sscanf(raw, "%d", &summary.TotalTracksRaw)
	}
	if raw, ok := details["discardedByReason"]; ok {
		if err := json.Unmarshal([]byte(raw), &summary.DiscardedByReason); err != nil {
			return summary, fmt.Errorf("decode discardedByReason: %w", err)
		}
	}
	return summary, nil
}

func (r *Repository) GetHistory(ctx context.Context, datasetID string) ([]aforo.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action, details_json, timestamp FROM history
		WHERE dataset_id = ? ORDER BY seq DESC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []aforo.HistoryEntry
	for rows.Next() {
		var h aforo.HistoryEntry
		var detailsJSON string
		if err := rows.Scan(&h.Action, &detailsJSON, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(detailsJSON), &h.Details); err != nil {
			return nil, fmt.Errorf("decode history details: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
