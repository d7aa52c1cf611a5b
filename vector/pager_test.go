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
	"encoding/json"
	"reflect"
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/xiaofuX1/MiniGIS/vector"
	"github.com/xiaofuX1/MiniGIS/vector/vectortest"
)

// tenFeatures 十个点要素，FID 为 100+i，属性 seq 为 i
func tenFeatures() *vectortest.LayerSpec {
	spec := &vectortest.LayerSpec{
		Name:   "ten",
		EPSG:   4326,
		Fields: []vector.FieldDefn{{Name: "seq", Type: "Integer"}},
	}
	for i := 0; i < 10; i++ {
		spec.Features = append(spec.Features, vectortest.FeatureSpec{
			FID:    int64(100 + i),
			Values: []vector.FieldValue{vector.IntegerValue(int64(i))},
			Geom:   orb.Point{float64(i), float64(i)},
		})
	}
	return spec
}

func pageSeqs(t *testing.T, page vector.Page) []int64 {
	t.Helper()
	layer := openLayer(t, vectortest.New(), tenFeatures())
	pager := vector.NewFeaturePager(&vector.Reprojection{}, vector.NewAttributeExtractor(layer.Fields(), "/data/ten.gpkg", zerolog.Nop()))
	features, err := pager.Page(layer, page, true)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	seqs := make([]int64, 0, len(features))
	for _, f := range features {
		v, _ := f.Properties.Get("seq")
		seqs = append(seqs, v.(int64))
	}
	return seqs
}

func TestFeaturePagerWindows(t *testing.T) {
	tests := []struct {
		name string
		page vector.Page
		want []int64
	}{
		{"middle window", vector.Page{Offset: 3, Limit: 4}, []int64{3, 4, 5, 6}},
		{"over-run limit", vector.Page{Offset: 8, Limit: 10}, []int64{8, 9}},
		{"unbounded", vector.Page{}, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"offset past end", vector.Page{Offset: 20, Limit: 5}, []int64{}},
		{"first only", vector.Page{Limit: 1}, []int64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pageSeqs(t, tt.page); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("page %+v = %v, want %v", tt.page, got, tt.want)
			}
		})
	}
}

func TestFeaturePagerIDs(t *testing.T) {
	spec := tenFeatures()
	spec.Features[2].FID = -1
	layer := openLayer(t, vectortest.New(), spec)
	pager := vector.NewFeaturePager(&vector.Reprojection{}, vector.NewAttributeExtractor(layer.Fields(), "/data/ten.gpkg", zerolog.Nop()))

	features, err := pager.Page(layer, vector.Page{Offset: 1, Limit: 2}, false)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if features[0].ID != "101" {
		t.Fatalf("native fid expected, got %s", features[0].ID)
	}
	if features[1].ID != strconv.Itoa(2) {
		t.Fatalf("missing fid must fall back to iteration index, got %s", features[1].ID)
	}
	if features[0].Geometry.GeomType != "Null" {
		t.Fatalf("geometry must be omitted, got %+v", features[0].Geometry)
	}
}

func TestNullGeometrySerialization(t *testing.T) {
	spec := tenFeatures()
	spec.Features[0].Geom = nil
	layer := openLayer(t, vectortest.New(), spec)
	pager := vector.NewFeaturePager(&vector.Reprojection{}, vector.NewAttributeExtractor(layer.Fields(), "/data/ten.gpkg", zerolog.Nop()))

	features, err := pager.Page(layer, vector.Page{Limit: 2}, true)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	b, err := json.Marshal(features[0].Geometry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"geom_type":"Null","coordinates":null}`; got != want {
		t.Fatalf("null geometry json = %s, want %s", got, want)
	}
	b, _ = json.Marshal(features[1].Geometry)
	if got, want := string(b), `{"geom_type":"Point","coordinates":[1,1]}`; got != want {
		t.Fatalf("point geometry json = %s, want %s", got, want)
	}
}

func TestGeometryWithZ(t *testing.T) {
	tests := []struct {
		name string
		g    orb.Geometry
		zs   []float64
		want string
	}{
		{"point", orb.Point{1, 2}, []float64{3}, `{"geom_type":"Point","coordinates":[1,2,3]}`},
		{"line", orb.LineString{{0, 0}, {1, 1}}, []float64{5, 6}, `{"geom_type":"LineString","coordinates":[[0,0,5],[1,1,6]]}`},
		{"polygon", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, []float64{1, 2, 3, 1},
			`{"geom_type":"Polygon","coordinates":[[[0,0,1],[1,0,2],[1,1,3],[0,0,1]]]}`},
		{"multipoint", orb.MultiPoint{{1, 1}, {2, 2}}, []float64{10, 20}, `{"geom_type":"MultiPoint","coordinates":[[1,1,10],[2,2,20]]}`},
		{"collection", orb.Collection{orb.Point{1, 1}, orb.LineString{{2, 2}, {3, 3}}}, []float64{1, 2, 3},
			`{"geom_type":"GeometryCollection","coordinates":null,"geometries":[{"geom_type":"Point","coordinates":[1,1,1]},{"geom_type":"LineString","coordinates":[[2,2,2],[3,3,3]]}]}`},
		{"two dimensional", orb.Point{1, 2}, nil, `{"geom_type":"Point","coordinates":[1,2]}`},
		{"count mismatch", orb.LineString{{0, 0}, {1, 1}}, []float64{5}, `{"geom_type":"LineString","coordinates":[[0,0],[1,1]]}`},
		{"null", nil, []float64{1}, `{"geom_type":"Null","coordinates":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(vector.GeometryWithZ(tt.g, tt.zs))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Fatalf("got %s, want %s", b, tt.want)
			}
		})
	}
}

func TestFeaturePagerCarriesZ(t *testing.T) {
	spec := tenFeatures()
	spec.Features[0].Geom = orb.LineString{{103.6, 31.0}, {104.1, 30.6}}
	spec.Features[0].Z = []float64{512.5, 498}
	layer := openLayer(t, vectortest.New(), spec)
	pager := vector.NewFeaturePager(&vector.Reprojection{}, vector.NewAttributeExtractor(layer.Fields(), "/data/ten.gpkg", zerolog.Nop()))

	features, err := pager.Page(layer, vector.Page{Limit: 2}, true)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	b, _ := json.Marshal(features[0].Geometry)
	if got, want := string(b), `{"geom_type":"LineString","coordinates":[[103.6,31,512.5],[104.1,30.6,498]]}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	b, _ = json.Marshal(features[1].Geometry)
	if got, want := string(b), `{"geom_type":"Point","coordinates":[1,1]}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
