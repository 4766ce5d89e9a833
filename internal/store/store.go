// Package store persists parcels, zoning overrides and the zoning audit log.
// Postgres (PostGIS) is the production driver; SQLite serves local and test
// deployments.
package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/zoning-cli/internal/model"
)

// ActionZoneUpdate is the audit action recorded for zoning updates.
const ActionZoneUpdate = "ZONE_UPDATE"

var (
	// ErrParcelNotFound is matched by errors naming parcels absent from the store.
	ErrParcelNotFound = eris.New("store: parcel not found")
	// ErrInvalidZoning is returned for an empty zoning type or id list.
	ErrInvalidZoning = eris.New("store: invalid zoning update")
)

// NotFoundError lists the requested parcels that do not exist.
type NotFoundError struct {
	IDs []model.ParcelID
}

func (e *NotFoundError) Error() string {
	return "store: parcels not found: " + joinIDs(e.IDs, ", ")
}

// Is matches ErrParcelNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrParcelNotFound
}

// ParcelRecord is an imported parcel. Area is in acres and is only stored by
// drivers that cannot compute it from the geometry.
type ParcelRecord struct {
	ID             model.ParcelID
	Name           string
	MailingAddress string
	ZoningType     *string
	Geometry       geom.T
	Area           float64
}

// AuditEntry is one row of the zoning audit log.
type AuditEntry struct {
	ID          string           `json:"id"`
	Action      string           `json:"action"`
	Description string           `json:"description"`
	ParcelIDs   []model.ParcelID `json:"parcelIds"`
	ZoningType  string           `json:"zoningType"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Store is the parcel persistence interface.
type Store interface {
	// ListParcels returns every parcel with its effective zoning, ordered by id.
	ListParcels(ctx context.Context) ([]model.Parcel, error)
	// UpdateZoning overrides the zoning of every id and records one audit
	// entry. Unknown ids fail the whole update with a NotFoundError.
	UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error
	// ImportParcels inserts or replaces parcel rows.
	ImportParcels(ctx context.Context, recs []ParcelRecord) (int64, error)
	// ListAudit returns the newest audit entries first.
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// validateUpdate normalizes an update request: ids are deduplicated and
// sorted, the zoning type trimmed.
func validateUpdate(ids []model.ParcelID, zoningType string) ([]model.ParcelID, string, error) {
	zoningType = strings.TrimSpace(zoningType)
	if len(ids) == 0 {
		return nil, "", eris.Wrap(ErrInvalidZoning, "no parcel ids")
	}
	if zoningType == "" {
		return nil, "", eris.Wrap(ErrInvalidZoning, "empty zoning type")
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out), zoningType, nil
}

// missing returns the ids absent from found.
func missing(ids []model.ParcelID, found map[model.ParcelID]bool) []model.ParcelID {
	var out []model.ParcelID
	for _, id := range ids {
		if !found[id] {
			out = append(out, id)
		}
	}
	return out
}

func auditDescription(count int, zoningType string) string {
	return fmt.Sprintf("Updated %d parcels to %s zoning", count, zoningType)
}

func joinIDs(ids []model.ParcelID, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, sep)
}

func splitIDs(csv string) []model.ParcelID {
	var ids []model.ParcelID
	for _, part := range strings.Split(csv, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, model.ParcelID(n))
	}
	return ids
}

func rawIDs(ids []model.ParcelID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
