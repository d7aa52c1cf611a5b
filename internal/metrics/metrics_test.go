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
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserverCounters(t *testing.T) {
	p := New("3.8.4")

	p.DatasetOpened("GBK", 1)
	p.DatasetOpened("", 3)
	p.OpenFailed()
	p.LayerSkipped()
	p.LayerSkipped()
	p.CacheLookup(true)
	p.CacheLookup(false)
	p.CacheLookup(false)
	p.ExportFinished("KML", true, 0.2)
	p.ExportFinished("KML", false, 1.5)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"opens gbk", testutil.ToFloat64(p.opens.WithLabelValues("GBK")), 1},
		{"opens default", testutil.ToFloat64(p.opens.WithLabelValues("default")), 1},
		{"fallbacks", testutil.ToFloat64(p.fallbacks), 2},
		{"open failures", testutil.ToFloat64(p.openFailures), 1},
		{"layers skipped", testutil.ToFloat64(p.layersSkipped), 2},
		{"cache hits", testutil.ToFloat64(p.cacheLookups.WithLabelValues("hit")), 1},
		{"cache misses", testutil.ToFloat64(p.cacheLookups.WithLabelValues("miss")), 2},
		{"exports ok", testutil.ToFloat64(p.exports.WithLabelValues("KML", "true")), 1},
		{"exports failed", testutil.ToFloat64(p.exports.WithLabelValues("KML", "false")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if n := testutil.CollectAndCount(p.exportDuration); n != 1 {
		t.Errorf("export duration series = %d, want 1", n)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	p := New("")
	p.OpenFailed()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"minigis_dataset_open_failures_total 1",
		`minigis_gdal_info{version="unknown"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in payload; got:\n%s", want, body)
		}
	}
}
