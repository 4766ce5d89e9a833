package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/zoning-cli/internal/db"
	"github.com/sells-group/zoning-cli/internal/model"
)

// PostgresStore implements Store on PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	listParcelsSQL = `SELECT p.id, ST_AsGeoJSON(p.geom), p.name, p.mailadd,
	COALESCE(z.zoning_type, p.zoning_typ),
	COALESCE(ST_Area(p.geom::geography), 0) / 4046.86
FROM real_estate_zoning p
LEFT JOIN parcel_zoning z ON z.parcel_id = p.id
ORDER BY p.id`

	existingParcelsSQL = `SELECT id FROM real_estate_zoning WHERE id = ANY($1)`

	upsertZoningSQL = `INSERT INTO parcel_zoning (parcel_id, zoning_type, updated_at)
SELECT unnest($1::bigint[]), $2, $3
ON CONFLICT (parcel_id) DO UPDATE SET zoning_type = EXCLUDED.zoning_type, updated_at = EXCLUDED.updated_at`

	insertAuditSQL = `INSERT INTO audit_log (id, action, description, parcel_ids, zoning_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	listAuditSQL = `SELECT id::text, action, description, parcel_ids, zoning_type, created_at
FROM audit_log ORDER BY created_at DESC LIMIT $1`
)

var parcelImport = db.UpsertConfig{
	Table:        "real_estate_zoning",
	Columns:      []string{"id", "name", "mailadd", "zoning_typ", "geom"},
	ConflictKeys: []string{"id"},
}

// NewPostgres connects a pool to connString and verifies it.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			cfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			cfg.MinConns = poolCfg.MinConns
		}
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return MigratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListParcels(ctx context.Context) ([]model.Parcel, error) {
	rows, err := s.pool.Query(ctx, listParcelsSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list parcels")
	}
	defer rows.Close()

	var parcels []model.Parcel
	for rows.Next() {
		var (
			id                   int64
			geometry, name, mail *string
			zoningType           *string
			area                 float64
		)
		if err := rows.Scan(&id, &geometry, &name, &mail, &zoningType, &area); err != nil {
			return nil, eris.Wrap(err, "postgres: scan parcel")
		}
		parcels = append(parcels, model.Parcel{
			ID:             model.ParcelID(id),
			Geometry:       deref(geometry),
			Name:           deref(name),
			MailingAddress: deref(mail),
			ZoningType:     model.ZoningPtr(deref(zoningType)),
			Area:           area,
		})
	}
	return parcels, eris.Wrap(rows.Err(), "postgres: iterate parcels")
}

func (s *PostgresStore) UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error {
	ids, zoningType, err := validateUpdate(ids, zoningType)
	if err != nil {
		return err
	}
	raw := rawIDs(ids)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: update zoning: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, existingParcelsSQL, raw)
	if err != nil {
		return eris.Wrap(err, "postgres: update zoning: check parcels")
	}
	found := make(map[model.ParcelID]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: update zoning: scan parcel id")
		}
		found[model.ParcelID(id)] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: update zoning: check parcels")
	}
	if absent := missing(ids, found); len(absent) > 0 {
		return &NotFoundError{IDs: absent}
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, upsertZoningSQL, raw, zoningType, now); err != nil {
		return eris.Wrap(err, "postgres: update zoning: upsert overrides")
	}
	if _, err := tx.Exec(ctx, insertAuditSQL,
		uuid.NewString(), ActionZoneUpdate, auditDescription(len(ids), zoningType),
		joinIDs(ids, ","), zoningType, now,
	); err != nil {
		return eris.Wrap(err, "postgres: update zoning: audit")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: update zoning: commit")
}

func (s *PostgresStore) ImportParcels(ctx context.Context, recs []ParcelRecord) (int64, error) {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		var wkb []byte
		if r.Geometry != nil {
			data, err := ewkb.Marshal(r.Geometry, ewkb.NDR)
			if err != nil {
				return 0, eris.Wrapf(err, "postgres: encode geometry of parcel %d", r.ID)
			}
			wkb = data
		}
		rows = append(rows, []any{int64(r.ID), nullable(r.Name), nullable(r.MailingAddress), r.ZoningType, wkb})
	}
	n, err := db.BulkUpsert(ctx, s.pool, parcelImport, rows)
	return n, eris.Wrap(err, "postgres: import parcels")
}

func (s *PostgresStore) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, listAuditSQL, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e   AuditEntry
			ids string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Description, &ids, &e.ZoningType, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		e.ParcelIDs = splitIDs(ids)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate audit")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
