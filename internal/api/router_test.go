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
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cheekybits/is"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/xiaofuX1/MiniGIS/vector"
	"github.com/xiaofuX1/MiniGIS/vector/vectortest"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRunner) Run(context.Context, string, []string) (vector.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return vector.RunResult{}, nil
}

func riversEngine() *vectortest.Engine {
	engine := vectortest.New()
	engine.DriverNames = []string{"ESRI Shapefile", "GeoJSON", "GPKG"}
	engine.Add("/data/rivers.gpkg", &vectortest.DatasetSpec{Layers: []*vectortest.LayerSpec{{
		Name: "rivers",
		EPSG: 4326,
		Fields: []vector.FieldDefn{
			{Name: "NAME", Type: "String"},
		},
		Features: []vectortest.FeatureSpec{
			{FID: 1, Values: []vector.FieldValue{vector.StringValue("岷江")}, Geom: orb.LineString{{103.6, 31.0}, {103.9, 30.5}}},
			{FID: 2, Values: []vector.FieldValue{vector.StringValue("沱江")}, Geom: orb.LineString{{104.2, 30.9}, {104.6, 30.1}}},
			{FID: 3, Values: []vector.FieldValue{vector.StringValue("涪江")}, Geom: orb.LineString{{104.7, 31.5}, {105.1, 30.6}}},
		},
	}}})
	return engine
}

func newTestServer(t *testing.T, engine *vectortest.Engine, opts ...vector.Option) (*httptest.Server, *countingRunner) {
	t.Helper()
	runner := &countingRunner{}
	opts = append([]vector.Option{
		vector.WithPool(vector.NewPool(2)),
		vector.WithRunner(runner),
		vector.WithAppDir(t.TempDir()),
	}, opts...)
	svc := vector.NewService(engine, opts...)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	srv := httptest.NewServer(NewRouter(svc, zerolog.Nop(), metrics))
	t.Cleanup(srv.Close)
	return srv, runner
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, body interface{}, v interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", strings.NewReader(string(b)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestHealthz(t *testing.T) {
	is := is.New(t)
	srv, _ := newTestServer(t, vectortest.New())

	resp, err := http.Get(srv.URL + "/healthz")
	is.NoErr(err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(string(body), "ok")
	is.True(resp.Header.Get(headerRequestID) != "")
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, vectortest.New())
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set(headerRequestID, "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(headerRequestID); got != "req-42" {
		t.Fatalf("X-Request-ID=%q want req-42", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t, vectortest.New())
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestInfo(t *testing.T) {
	is := is.New(t)
	srv, _ := newTestServer(t, riversEngine())

	var info vector.VectorInfo
	resp := getJSON(t, srv.URL+"/api/vector/info?path=/data/rivers.gpkg", &info)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(info.Path, "/data/rivers.gpkg")
	is.Equal(info.FeatureCount, 3)
	is.Equal(info.GeometryType, "LineString")
	is.Equal(len(info.Fields), 1)
	is.True(info.Extent.MinX >= 103.6 && info.Extent.MaxX <= 105.1)
}

func TestErrorStatus(t *testing.T) {
	srv, _ := newTestServer(t, riversEngine())

	tests := []struct {
		name   string
		url    string
		status int
		kind   string
	}{
		{"missing path", "/api/vector/info", http.StatusBadRequest, "ParseError"},
		{"unreadable file", "/api/vector/info?path=/data/missing.shp", http.StatusInternalServerError, "FileReadError"},
		{"bad limit", "/api/vector/features?path=/data/rivers.gpkg&limit=abc", http.StatusBadRequest, "ParseError"},
		{"negative offset", "/api/vector/table?path=/data/rivers.gpkg&offset=-1", http.StatusBadRequest, "ParseError"},
		{"bad layer index", "/api/vector/layers/x/geojson?path=/data/rivers.gpkg", http.StatusBadRequest, "ParseError"},
		{"layer out of range", "/api/vector/layers/5/geojson?path=/data/rivers.gpkg", http.StatusInternalServerError, "FileReadError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			resp := getJSON(t, srv.URL+tt.url, &body)
			if resp.StatusCode != tt.status {
				t.Errorf("status=%d want %d", resp.StatusCode, tt.status)
			}
			if body.Kind != tt.kind {
				t.Errorf("kind=%q want %q", body.Kind, tt.kind)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestFeaturesAndTable(t *testing.T) {
	is := is.New(t)
	srv, _ := newTestServer(t, riversEngine())

	var features []struct {
		ID         string                 `json:"id"`
		Properties map[string]interface{} `json:"properties"`
		Geometry   struct {
			GeomType string `json:"geom_type"`
		} `json:"geometry"`
	}
	resp := getJSON(t, srv.URL+"/api/vector/features/geometry?path=/data/rivers.gpkg&offset=1&limit=1", &features)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(len(features), 1)
	is.Equal(features[0].ID, "2")
	is.Equal(features[0].Properties["NAME"], "沱江")
	is.Equal(features[0].Geometry.GeomType, "LineString")

	var table struct {
		Features []json.RawMessage `json:"features"`
		Total    int               `json:"total"`
	}
	resp = getJSON(t, srv.URL+"/api/vector/table?path=/data/rivers.gpkg&limit=2", &table)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(table.Total, 3)
	is.Equal(len(table.Features), 2)

	var count map[string]int
	getJSON(t, srv.URL+"/api/vector/count?path=/data/rivers.gpkg", &count)
	is.Equal(count["count"], 3)
}

func TestGeoJSON(t *testing.T) {
	is := is.New(t)
	srv, _ := newTestServer(t, riversEngine())

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       interface{} `json:"id"`
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	resp := getJSON(t, srv.URL+"/api/vector/layers/0/geojson?path=/data/rivers.gpkg", &fc)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(fc.Type, "FeatureCollection")
	is.Equal(len(fc.Features), 3)
	is.Equal(fc.Features[0].Geometry.Type, "LineString")
}

func TestExport(t *testing.T) {
	srv, runner := newTestServer(t, riversEngine())

	var body errorBody
	resp := postJSON(t, srv.URL+"/api/vector/export", vector.ExportRequest{
		InputPath:  "/data/rivers.gpkg",
		OutputPath: t.TempDir() + "/rivers.tif",
		Format:     "TIFF",
	}, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
	if body.Kind != "InvalidFormat" {
		t.Fatalf("kind=%q want InvalidFormat", body.Kind)
	}
	if runner.calls != 0 {
		t.Fatalf("runner called %d times", runner.calls)
	}

	resp = postJSON(t, srv.URL+"/api/vector/export", map[string]string{"format": "GeoJSON"}, &body)
	if resp.StatusCode != http.StatusBadRequest || body.Kind != "ParseError" {
		t.Fatalf("missing paths: status=%d kind=%q", resp.StatusCode, body.Kind)
	}
}

func TestTransform(t *testing.T) {
	srv, _ := newTestServer(t, vectortest.New())

	var out map[string][]orb.Point
	resp := postJSON(t, srv.URL+"/api/crs/transform", TransformRequest{
		From:   "EPSG:3857",
		To:     "EPSG:4326",
		Points: []orb.Point{{0, 0}},
	}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	p := out["points"][0]
	if math.Abs(p[0]) > 1e-6 || math.Abs(p[1]) > 1e-6 {
		t.Fatalf("origin moved: %v", p)
	}

	var body errorBody
	resp = postJSON(t, srv.URL+"/api/crs/transform", TransformRequest{From: "EPSG:3857", To: "bogus"}, &body)
	if resp.StatusCode != http.StatusBadRequest || body.Kind != "InvalidFormat" {
		t.Fatalf("bad target: status=%d kind=%q", resp.StatusCode, body.Kind)
	}
}

func TestDriversAndVersion(t *testing.T) {
	is := is.New(t)
	srv, _ := newTestServer(t, riversEngine())

	var drivers []string
	getJSON(t, srv.URL+"/api/gdal/drivers", &drivers)
	is.Equal(drivers, []string{"ESRI Shapefile", "GeoJSON", "GPKG"})

	var version map[string]string
	getJSON(t, srv.URL+"/api/gdal/version", &version)
	is.Equal(version["version"], "fake 1.0")

	var d vector.Diagnostics
	resp := getJSON(t, srv.URL+"/api/gdal/diagnose", &d)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(d.DriverCount, 3)
}

func TestRecoverReturnsJSON(t *testing.T) {
	h := Recover(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Kind != "Unknown" {
		t.Fatalf("kind=%q", body.Kind)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&vector.Error{Kind: vector.KindFileNotFound}, http.StatusNotFound},
		{&vector.Error{Kind: vector.KindInvalidFormat}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &vector.Error{Kind: vector.KindParse}), http.StatusBadRequest},
		{&vector.Error{Kind: vector.KindFileWrite}, http.StatusInternalServerError},
		{&vector.Error{Kind: vector.KindFileWrite, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v)=%d want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	tests := []struct {
		name       string
		v          interface{}
		status     int
		wantStatus int
		wantKind   string
	}{
		{name: "ok", v: map[string]int{"count": 2}, status: http.StatusOK, wantStatus: http.StatusOK},
		{name: "nan", v: map[string]float64{"x": math.NaN()}, status: http.StatusOK, wantStatus: http.StatusInternalServerError, wantKind: "InvalidFormat"},
		{name: "inf", v: []float64{math.Inf(1)}, status: http.StatusOK, wantStatus: http.StatusInternalServerError, wantKind: "InvalidFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			rr := httptest.NewRecorder()
			writeJSON(rr, tt.status, tt.v)
			is.Equal(rr.Code, tt.wantStatus)
			is.True(json.Valid(rr.Body.Bytes()))
			if tt.wantKind == "" {
				return
			}
			var body errorBody
			is.NoErr(json.Unmarshal(rr.Body.Bytes(), &body))
			is.Equal(body.Kind, tt.wantKind)
			is.True(body.Error != "")
		})
	}
}
