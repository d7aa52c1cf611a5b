/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package vector_test

import (
	"errors"
	"testing"

	"github.com/cheekybits/is"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/xiaofuX1/MiniGIS/vector"
	"github.com/xiaofuX1/MiniGIS/vector/vectortest"
)

func threeLayers() *vectortest.DatasetSpec {
	return &vectortest.DatasetSpec{Layers: []*vectortest.LayerSpec{
		{
			Name:     "folder-a",
			EPSG:     4326,
			Fields:   []vector.FieldDefn{{Name: "name", Type: "String"}},
			Features: []vectortest.FeatureSpec{{FID: 1, Geom: orb.Point{104, 30}}},
		},
		{
			Name:      "broken",
			EPSG:      4326,
			ExtentErr: errors.New("corrupt sublayer"),
		},
		{
			Name:     "folder-c",
			EPSG:     3857,
			Features: []vectortest.FeatureSpec{{FID: 1, Geom: orb.LineString{{11e6, 3e6}, {12e6, 4e6}}}},
		},
	}}
}

func inspect(t *testing.T, engine *vectortest.Engine, spec *vectortest.DatasetSpec) (*vector.MultiLayerVectorInfo, error) {
	t.Helper()
	engine.Add("/data/doc.kml", spec)
	ds, err := engine.Open("/data/doc.kml")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ds.Close()
	log := zerolog.Nop()
	return vector.NewMultiLayerInspector(vector.NewCrsNormalizer(engine, log), nil, log).Inspect("/data/doc.kml", ds)
}

func TestMultiLayerSkipsLayerWithoutExtent(t *testing.T) {
	is := is.New(t)
	info, err := inspect(t, vectortest.New(), threeLayers())
	is.NoErr(err)

	is.Equal(info.LayerCount, 3)
	is.Equal(len(info.Layers), 2)
	is.Equal(info.Layers[0].Index, 0)
	is.Equal(info.Layers[1].Index, 2)
	is.Equal(info.Layers[0].GeometryType, "Point")
	is.Equal(info.Layers[1].GeometryType, "LineString")
	is.NotNil(info.Projection)

	ext := info.Layers[1].Extent
	is.True(ext.MinX > 98 && ext.MaxX < 108)
	is.True(ext.MinY > 26 && ext.MaxY < 34)
}

func TestMultiLayerSkipsInaccessibleLayer(t *testing.T) {
	spec := threeLayers()
	spec.Layers[1].ExtentErr = nil
	spec.LayerErrors = map[int]error{1: errors.New("no such layer")}

	info, err := inspect(t, vectortest.New(), spec)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.LayerCount != 3 || len(info.Layers) != 2 {
		t.Fatalf("layer_count=%d layers=%d", info.LayerCount, len(info.Layers))
	}
}

func TestMultiLayerTransformFailureIsFatal(t *testing.T) {
	engine := vectortest.New()
	engine.FailTransform = true
	_, err := inspect(t, engine, threeLayers())
	if !vector.IsKind(err, vector.KindInvalidFormat) {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}

func TestMultiLayerEmptyLayerGeometryUnknown(t *testing.T) {
	spec := &vectortest.DatasetSpec{Layers: []*vectortest.LayerSpec{{Name: "empty"}}}
	info, err := inspect(t, vectortest.New(), spec)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Layers[0].GeometryType != "Unknown" {
		t.Fatalf("geometry_type = %s", info.Layers[0].GeometryType)
	}
	if info.Projection != nil {
		t.Fatalf("projection of a layer without CRS must be nil, got %q", *info.Projection)
	}
}
