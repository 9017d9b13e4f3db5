// Package normalize implements the detection normalizer (component B):
// coercing heterogeneous raw detection payloads into the canonical
// Detection schema.
//
// Grounded on original_source's api/services/convert.py: the same three
// recognized shapes (tabular aliases, bbox-only, structured-detection) and
// the same case-insensitive column-alias matching, reworked from a
// pandas/pickle pipeline into two Go input types: RawTabular, projected by
// NormalizeTabular (tabular and bbox-only shapes), and
// RawStructuredDetection, projected by NormalizeStructuredDetection.
package normalize

import (
	"strconv"
	"strings"

	"github.com/aforos-core/rilsa-engine/pkg/aforerr"
	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// Defaults for metadata fields the raw blob may omit.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFPS    = 30.0
)

// Metadata is the (possibly partial) video/session metadata a raw blob may
// carry, with fallbacks applied.
type Metadata struct {
	Width, Height int
	FPS           float64
}

// ShapeKind tags which recognized raw-detection shape a blob matched.
type ShapeKind int

const (
	ShapeTabular ShapeKind = iota
	ShapeBBoxOnly
	ShapeStructuredDetection
)

// TabularRow is one row of a generic column-oriented detection table, keyed
// by lower-cased column name.
type TabularRow map[string]any

// RawTabular is the tabular (or bbox-only) raw shape: a list of rows plus
// whatever metadata accompanied them.
type RawTabular struct {
	Rows     []TabularRow
	Metadata Metadata
}

// StructuredFrame is one entry of a StructuredDetection's `detecciones` list.
type StructuredFrame struct {
	Fotograma int
	Clase     string
	Confianza float64
	BBox      [4]float64 // xmin, ymin, xmax, ymax
}

// RawStructuredDetection is the `{metadata, detecciones, trayectorias,
// config}` shape; track_id is absent and assigned later by the
// tracker.
type RawStructuredDetection struct {
	Detecciones []StructuredFrame
	Metadata    Metadata
}

var tabularAliases = map[string][]string{
	"frame_id":     {"frame_id", "frame", "frame_idx", "frame_index", "frame_number"},
	"track_id":     {"track_id", "id", "track", "object_id"},
	"x":            {"x", "xc", "x_center", "cx", "bbox_center_x"},
	"y":            {"y", "yc", "y_center", "cy", "bbox_center_y"},
	"object_class": {"object_class", "cls", "class", "label", "object_type", "category"},
}

var bboxAliasSets = [][4]string{
	{"bbox_left", "bbox_top", "bbox_width", "bbox_height"},
	{"xmin", "ymin", "xmax", "ymax"},
	{"left", "top", "width", "height"},
}

// resolveAlias finds the first column (case-insensitively) among candidates
// present in the row's key set, returning the actual key used.
func resolveAlias(columns map[string]bool, candidates []string) (string, bool) {
	for _, c := range candidates {
		if columns[strings.ToLower(c)] {
			return strings.ToLower(c), true
		}
	}
	return "", false
}

func lowerColumnSet(row TabularRow) map[string]bool {
	cols := make(map[string]bool, len(row))
	for k := range row {
		cols[strings.ToLower(k)] = true
	}
	return cols
}

// NormalizeTabular projects a RawTabular blob into canonical detections,
// trying the direct-centroid column aliases first and the three
// bbox-only alias sets as a fallback.
func NormalizeTabular(raw RawTabular, datasetID string) ([]aforo.Detection, error) {
	if len(raw.Rows) == 0 {
		return nil, nil
	}

	columns := lowerColumnSet(raw.Rows[0])

	frameCol, hasFrame := resolveAlias(columns, tabularAliases["frame_id"])
	classCol, hasClass := resolveAlias(columns, tabularAliases["object_class"])
	xCol, hasX := resolveAlias(columns, tabularAliases["x"])
	yCol, hasY := resolveAlias(columns, tabularAliases["y"])
	trackCol, hasTrack := resolveAlias(columns, tabularAliases["track_id"])

	usingCentroid := hasX && hasY
	var bboxCols [4]string
	usingBBox := false
	if !usingCentroid {
		for _, set := range bboxAliasSets {
			if columns[set[0]] && columns[set[1]] && columns[set[2]] && columns[set[3]] {
				bboxCols = set
				usingBBox = true
				break
			}
		}
	}

	if !hasFrame || !hasClass || (!usingCentroid && !usingBBox) {
		seen := make([]string, 0, len(columns))
		for c := range columns {
			seen = append(seen, c)
		}
		return nil, aforerr.New(aforerr.InputShapeMismatch, datasetID,
			"columns-not-mappable: "+strings.Join(seen, ","))
	}

	detections := make([]aforo.Detection, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		frameID, err := toInt(row[frameColKey(row, frameCol)])
		if err != nil {
			continue
		}
		class, _ := toString(row[frameColKey(row, classCol)])

		var x, y float64
		if usingCentroid {
			x, _ = toFloat(row[frameColKey(row, xCol)])
			y, _ = toFloat(row[frameColKey(row, yCol)])
		} else {
			left, _ := toFloat(row[frameColKey(row, bboxCols[0])])
			top, _ := toFloat(row[frameColKey(row, bboxCols[1])])
			var width, height float64
			if bboxCols == bboxAliasSets[1] { // xmin,ymin,xmax,ymax
				xmax, _ := toFloat(row[frameColKey(row, bboxCols[2])])
				ymax, _ := toFloat(row[frameColKey(row, bboxCols[3])])
				width = xmax - left
				height = ymax - top
			} else {
				width, _ = toFloat(row[frameColKey(row, bboxCols[2])])
				height, _ = toFloat(row[frameColKey(row, bboxCols[3])])
			}
			x = left + width/2
			y = top + height/2
		}

		confidence := 1.0
		if v, ok := row["confidence"]; ok {
			if c, err := toFloat(v); err == nil {
				confidence = c
			}
		}

		det := aforo.Detection{
			FrameID:    frameID,
			X:          x,
			Y:          y,
			Class:      class,
			Confidence: confidence,
		}
		if hasTrack {
			if tid, err := toInt(row[frameColKey(row, trackCol)]); err == nil {
				det.TrackHint = &tid
			}
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// frameColKey re-resolves the original (possibly mixed-case) key matching a
// lower-cased alias, since TabularRow preserves the caller's casing.
func frameColKey(row TabularRow, lowerKey string) string {
	for k := range row {
		if strings.ToLower(k) == lowerKey {
			return k
		}
	}
	return lowerKey
}

// NormalizeStructuredDetection projects the `{metadata, detecciones,
// trayectorias, config}` shape into canonical detections.
// track_id is intentionally left unset; the tracker assigns it.
func NormalizeStructuredDetection(raw RawStructuredDetection) []aforo.Detection {
	detections := make([]aforo.Detection, 0, len(raw.Detecciones))
	for _, d := range raw.Detecciones {
		xmin, ymin, xmax, ymax := d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]
		detections = append(detections, aforo.Detection{
			FrameID:    d.Fotograma,
			X:          (xmin + xmax) / 2,
			Y:          (ymin + ymax) / 2,
			Class:      d.Clase,
			Confidence: d.Confianza,
		})
	}
	return detections
}

// WithDefaults fills unset metadata fields with the documented fallbacks.
func (m Metadata) WithDefaults() Metadata {
	out := m
	if out.Width == 0 {
		out.Width = DefaultWidth
	}
	if out.Height == 0 {
		out.Height = DefaultHeight
	}
	if out.FPS == 0 {
		out.FPS = DefaultFPS
	}
	return out
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, err
		}
		return int(f), nil
	default:
		return 0, strconv.ErrSyntax
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, strconv.ErrSyntax
	}
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		return "", strconv.ErrSyntax
	}
}
