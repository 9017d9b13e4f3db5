package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforerr"
)

func TestNormalizeTabularCentroidAliases(t *testing.T) {
	raw := RawTabular{
		Rows: []TabularRow{
			{"Frame": 0, "Track": 1, "XC": 10.0, "YC": 20.0, "Label": "car", "confidence": 0.9},
			{"Frame": 1, "Track": 1, "XC": 12.0, "YC": 22.0, "Label": "car"},
		},
	}
	dets, err := NormalizeTabular(raw, "ds1")
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, 0, dets[0].FrameID)
	assert.Equal(t, 10.0, dets[0].X)
	assert.Equal(t, "car", dets[0].Class)
	assert.Equal(t, 0.9, dets[0].Confidence)
	require.NotNil(t, dets[0].TrackHint)
	assert.Equal(t, 1, *dets[0].TrackHint)
	assert.Equal(t, 1.0, dets[1].Confidence, "missing confidence defaults to 1.0")
}

func TestNormalizeTabularBBoxOnly(t *testing.T) {
	raw := RawTabular{
		Rows: []TabularRow{
			{"frame_id": 0, "object_class": "truck_c2", "xmin": 0.0, "ymin": 0.0, "xmax": 10.0, "ymax": 20.0},
		},
	}
	dets, err := NormalizeTabular(raw, "ds1")
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 5.0, dets[0].X)
	assert.Equal(t, 10.0, dets[0].Y)
}

func TestNormalizeTabularLeftTopWidthHeight(t *testing.T) {
	raw := RawTabular{
		Rows: []TabularRow{
			{"frame": 0, "class": "person", "left": 0.0, "top": 0.0, "width": 10.0, "height": 20.0},
		},
	}
	dets, err := NormalizeTabular(raw, "ds1")
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 5.0, dets[0].X)
	assert.Equal(t, 10.0, dets[0].Y)
}

func TestNormalizeTabularUnmappableColumnsRejected(t *testing.T) {
	raw := RawTabular{
		Rows: []TabularRow{
			{"some_weird_col": 1, "another_col": 2},
		},
	}
	_, err := NormalizeTabular(raw, "ds1")
	require.Error(t, err)
	var aerr *aforerr.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, aforerr.InputShapeMismatch, aerr.Kind)
}

func TestNormalizeStructuredDetection(t *testing.T) {
	raw := RawStructuredDetection{
		Detecciones: []StructuredFrame{
			{Fotograma: 3, Clase: "car", Confianza: 0.8, BBox: [4]float64{0, 0, 10, 20}},
		},
	}
	dets := NormalizeStructuredDetection(raw)
	require.Len(t, dets, 1)
	assert.Equal(t, 3, dets[0].FrameID)
	assert.Equal(t, 5.0, dets[0].X)
	assert.Equal(t, 10.0, dets[0].Y)
	assert.Nil(t, dets[0].TrackHint, "structured-detection shape never carries a track hint")
}

func TestMetadataDefaults(t *testing.T) {
	m := Metadata{}.WithDefaults()
	assert.Equal(t, DefaultWidth, m.Width)
	assert.Equal(t, DefaultHeight, m.Height)
	assert.Equal(t, DefaultFPS, m.FPS)
}
