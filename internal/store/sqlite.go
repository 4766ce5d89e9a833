package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	_ "modernc.org/sqlite"

	"github.com/sells-group/zoning-cli/internal/model"
)

// SQLiteStore implements Store on modernc.org/sqlite. Geometry is stored as
// GeoJSON text and area is precomputed at import.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS real_estate_zoning (
	id         INTEGER PRIMARY KEY,
	geometry   TEXT,
	name       TEXT,
	mailadd    TEXT,
	zoning_typ TEXT,
	area_acres REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS parcel_zoning (
	parcel_id   INTEGER PRIMARY KEY REFERENCES real_estate_zoning(id) ON DELETE CASCADE,
	zoning_type TEXT NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	description TEXT NOT NULL,
	parcel_ids  TEXT NOT NULL,
	zoning_type TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListParcels(ctx context.Context) ([]model.Parcel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.id, p.geometry, p.name, p.mailadd,
		COALESCE(z.zoning_type, p.zoning_typ), p.area_acres
	FROM real_estate_zoning p
	LEFT JOIN parcel_zoning z ON z.parcel_id = p.id
	ORDER BY p.id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list parcels")
	}
	defer rows.Close() //nolint:errcheck

	var parcels []model.Parcel
	for rows.Next() {
		var (
			p                    model.Parcel
			id                   int64
			geometry, name, mail sql.NullString
			zoningType           sql.NullString
		)
		if err := rows.Scan(&id, &geometry, &name, &mail, &zoningType, &p.Area); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parcel")
		}
		p.ID = model.ParcelID(id)
		p.Geometry = geometry.String
		p.Name = name.String
		p.MailingAddress = mail.String
		p.ZoningType = model.ZoningPtr(zoningType.String)
		parcels = append(parcels, p)
	}
	return parcels, eris.Wrap(rows.Err(), "sqlite: iterate parcels")
}

func (s *SQLiteStore) UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error {
	ids, zoningType, err := validateUpdate(ids, zoningType)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: update zoning: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	found, err := existingIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	if absent := missing(ids, found); len(absent) > 0 {
		return &NotFoundError{IDs: absent}
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO parcel_zoning (parcel_id, zoning_type, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(parcel_id) DO UPDATE SET zoning_type = excluded.zoning_type, updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: update zoning: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, int64(id), zoningType, now); err != nil {
			return eris.Wrapf(err, "sqlite: update zoning: parcel %d", id)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, description, parcel_ids, zoning_type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ActionZoneUpdate, auditDescription(len(ids), zoningType),
		joinIDs(ids, ","), zoningType, now,
	); err != nil {
		return eris.Wrap(err, "sqlite: update zoning: audit")
	}

	return eris.Wrap(tx.Commit(), "sqlite: update zoning: commit")
}

func existingIDs(ctx context.Context, tx *sql.Tx, ids []model.ParcelID) (map[model.ParcelID]bool, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := tx.QueryContext(ctx, `SELECT id FROM real_estate_zoning WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: update zoning: check parcels")
	}
	defer rows.Close() //nolint:errcheck

	found := make(map[model.ParcelID]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: update zoning: scan parcel id")
		}
		found[model.ParcelID(id)] = true
	}
	return found, eris.Wrap(rows.Err(), "sqlite: update zoning: check parcels")
}

func (s *SQLiteStore) ImportParcels(ctx context.Context, recs []ParcelRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO real_estate_zoning (id, geometry, name, mailadd, zoning_typ, area_acres)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET geometry = excluded.geometry, name = excluded.name,
			mailadd = excluded.mailadd, zoning_typ = excluded.zoning_typ, area_acres = excluded.area_acres`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range recs {
		var geometry *string
		if r.Geometry != nil {
			data, err := geojson.Marshal(r.Geometry)
			if err != nil {
				return n, eris.Wrapf(err, "sqlite: encode geometry of parcel %d", r.ID)
			}
			g := string(data)
			geometry = &g
		}
		if _, err := stmt.ExecContext(ctx, int64(r.ID), geometry, nullable(r.Name),
			nullable(r.MailingAddress), r.ZoningType, r.Area); err != nil {
			return n, eris.Wrapf(err, "sqlite: import parcel %d", r.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import: commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, description, parcel_ids, zoning_type, created_at FROM audit_log ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close() //nolint:errcheck

	var entries []AuditEntry
	for rows.Next() {
		var (
			e   AuditEntry
			ids string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Description, &ids, &e.ZoningType, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		e.ParcelIDs = splitIDs(ids)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate audit")
}
