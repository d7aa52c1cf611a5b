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

// Package metrics exposes Prometheus metrics for the vector service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiaofuX1/MiniGIS/vector"
)

const namespace = "minigis"

type Provider struct {
	reg *prometheus.Registry

	opens          *prometheus.CounterVec
	openFailures   prometheus.Counter
	fallbacks      prometheus.Counter
	layersSkipped  prometheus.Counter
	exports        *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
}

var _ vector.Observer = (*Provider)(nil)

// New 创建独立的注册表。version 为 GDAL 版本号
func New(version string) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Provider{
		reg: reg,
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_opens_total",
			Help:      "Datasets opened, by the encoding candidate that succeeded.",
		}, []string{"encoding"}),
		openFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_open_failures_total",
			Help:      "Opens where every encoding candidate failed.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoding_fallbacks_total",
			Help:      "Failed encoding attempts that were followed by another candidate.",
		}),
		layersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layers_skipped_total",
			Help:      "Layers omitted from multi-layer summaries.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Exports by driver and result.",
		}, []string{"driver", "ok"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Wall time of export subprocesses.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"driver"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_cache_lookups_total",
			Help:      "Summary cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(p.opens, p.openFailures, p.fallbacks, p.layersSkipped, p.exports, p.exportDuration, p.cacheLookups)

	build := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gdal_info",
		Help:      "GDAL release in use (value is always 1).",
	}, []string{"version"})
	reg.MustRegister(build)
	if version == "" {
		version = "unknown"
	}
	build.WithLabelValues(version).Set(1)
	return p
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

func (p *Provider) DatasetOpened(encoding string, attempts int) {
	if encoding == "" {
		encoding = "default"
	}
	p.opens.WithLabelValues(encoding).Inc()
	if attempts > 1 {
		p.fallbacks.Add(float64(attempts - 1))
	}
}

func (p *Provider) OpenFailed() { p.openFailures.Inc() }

func (p *Provider) LayerSkipped() { p.layersSkipped.Inc() }

func (p *Provider) ExportFinished(driver string, ok bool, seconds float64) {
	p.exports.WithLabelValues(driver, strconv.FormatBool(ok)).Inc()
	p.exportDuration.WithLabelValues(driver).Observe(seconds)
}

func (p *Provider) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}
