package session

import (
	"slices"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/zoning-cli/internal/maplayer"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/stats"
	"github.com/sells-group/zoning-cli/internal/workflow"
)

// Extent is a framed bounding box in lon/lat.
type Extent struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Snapshot is the read-only presentation state of a session.
type Snapshot struct {
	SessionID     string                     `json:"sessionId"`
	Loaded        bool                       `json:"loaded"`
	Failed        bool                       `json:"failed"`
	Error         string                     `json:"error,omitempty"`
	Touch         bool                       `json:"touch"`
	Mode          string                     `json:"mode"`
	Cursor        string                     `json:"cursor"`
	Vocabulary    []string                   `json:"vocabulary"`
	SelectedIDs   []model.ParcelID           `json:"selectedIds"`
	Count         int                        `json:"count"`
	Target        string                     `json:"target"`
	Changed       bool                       `json:"changed"`
	Workflow      workflow.State             `json:"workflow"`
	CanUpdate     bool                       `json:"canUpdate"`
	LayerRevision uint64                     `json:"layerRevision"`
	Layer         *geojson.FeatureCollection `json:"layer,omitempty"`
	Frame         *Extent                    `json:"frame,omitempty"`
	FrameCount    int                        `json:"frameCount"`
	Hover         maplayer.Hover             `json:"hover"`
	Stats         stats.Result               `json:"stats"`
	Notices       []workflow.Notice          `json:"notices"`
}

// snapshot runs on the loop.
func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:     s.id,
		Loaded:        s.loaded,
		Failed:        s.failed,
		Touch:         s.modes.IsTouch(),
		Mode:          s.modes.Mode().String(),
		Cursor:        s.layer.Cursor(),
		Vocabulary:    s.cache.Vocabulary().Types(),
		SelectedIDs:   s.sel.IDs(),
		Count:         s.sel.Count(),
		Target:        s.sel.Target(),
		Changed:       s.sel.Changed(),
		Workflow:      s.wf.State(),
		LayerRevision: s.layerRev,
		FrameCount:    s.frames,
		Hover:         s.layer.Hover(),
		Stats:         s.statsRes,
		Notices:       slices.Clone(s.notices),
	}
	snap.CanUpdate = snap.Workflow == workflow.Idle && s.wf.Ready()
	if s.loadErr != nil {
		snap.Error = s.loadErr.Error()
	}
	if s.loaded {
		snap.Layer = s.layer.Layer().FeatureCollection()
	}
	if s.frame != nil {
		snap.Frame = &Extent{
			MinX: s.frame.Min(0), MinY: s.frame.Min(1),
			MaxX: s.frame.Max(0), MaxY: s.frame.Max(1),
		}
	}
	return snap
}
