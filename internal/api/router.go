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

// Package api 以 HTTP/JSON 方式暴露矢量查询与导出操作
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/xiaofuX1/MiniGIS/internal/logger"
	"github.com/xiaofuX1/MiniGIS/vector"
)

type errorBody struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// TransformRequest 坐标转换请求体
type TransformRequest struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Points []orb.Point `json:"points"`
}

type handler struct {
	svc *vector.Service
	log zerolog.Logger
}

// NewRouter 构建路由。metrics 为 nil 时不注册 /metrics
func NewRouter(svc *vector.Service, log zerolog.Logger, metrics http.Handler) http.Handler {
	h := &handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestLogging(log))
	r.Use(Recover(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/vector", func(r chi.Router) {
		r.Get("/info", h.info)
		r.Get("/layers", h.layers)
		r.Get("/count", h.count)
		r.Get("/features", h.features(false))
		r.Get("/features/geometry", h.features(true))
		r.Get("/table", h.table)
		r.Get("/geojson", h.geojson)
		r.Get("/layers/{index}/geojson", h.layerGeoJSON)
		r.Post("/export", h.export)
	})
	r.Post("/api/crs/transform", h.transform)
	r.Get("/api/gdal/drivers", h.drivers)
	r.Get("/api/gdal/version", h.version)
	r.Get("/api/gdal/diagnose", h.diagnose)
	return r
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}
	info, err := h.svc.Info(r.Context(), path)
	h.respond(w, r, info, err)
}

func (h *handler) layers(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}
	info, err := h.svc.MultiLayerInfo(r.Context(), path)
	h.respond(w, r, info, err)
}

func (h *handler) count(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}
	n, err := h.svc.FeatureCount(r.Context(), path)
	h.respond(w, r, map[string]int{"count": n}, err)
}

func (h *handler) features(withGeometry bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := h.path(w, r)
		if !ok {
			return
		}
		page, err := parsePage(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		var features []vector.Feature
		if withGeometry {
			features, err = h.svc.FeaturesWithGeometry(r.Context(), path, page)
		} else {
			features, err = h.svc.Features(r.Context(), path, page)
		}
		h.respond(w, r, features, err)
	}
}

func (h *handler) table(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	table, err := h.svc.AttributeTable(r.Context(), path, page)
	h.respond(w, r, table, err)
}

func (h *handler) geojson(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}
	fc, err := h.svc.GeoJSON(r.Context(), path)
	h.respond(w, r, fc, err)
}

func (h *handler) layerGeoJSON(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.fail(w, r, parseError(err, "图层索引无效: %q", chi.URLParam(r, "index")))
		return
	}
	fc, err := h.svc.LayerGeoJSON(r.Context(), path, index)
	h.respond(w, r, fc, err)
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	var req vector.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, parseError(err, "导出请求格式错误"))
		return
	}
	if req.InputPath == "" || req.OutputPath == "" {
		h.fail(w, r, parseError(nil, "input_path 与 output_path 不能为空"))
		return
	}
	start := time.Now()
	err := h.svc.Export(r.Context(), req)
	h.respond(w, r, map[string]interface{}{
		"output_path": req.OutputPath,
		"format":      req.Format,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	}, err)
}

func (h *handler) transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, parseError(err, "坐标转换请求格式错误"))
		return
	}
	points, err := h.svc.TransformCoordinates(r.Context(), req.From, req.To, req.Points)
	h.respond(w, r, map[string][]orb.Point{"points": points}, err)
}

func (h *handler) drivers(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.Drivers(), nil)
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, map[string]string{"version": h.svc.Version()}, nil)
}

func (h *handler) diagnose(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Diagnose(r.Context())
	h.respond(w, r, d, err)
}

func (h *handler) path(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.fail(w, r, parseError(nil, "缺少 path 参数"))
		return "", false
	}
	return path, true
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	l := logger.FromContext(r.Context(), &h.log)
	ev := l.Info()
	if status >= http.StatusInternalServerError {
		ev = l.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, errorBody{Kind: vector.KindOf(err).String(), Error: err.Error()})
}

// StatusOf 错误分类到 HTTP 状态码的映射
func StatusOf(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch vector.KindOf(err) {
	case vector.KindFileNotFound:
		return http.StatusNotFound
	case vector.KindInvalidFormat, vector.KindParse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parsePage(r *http.Request) (vector.Page, error) {
	var page vector.Page
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"offset", &page.Offset}, {"limit", &page.Limit}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return vector.Page{}, parseError(err, "%s 参数无效: %q", p.name, raw)
		}
		*p.dst = n
	}
	return page, nil
}

func parseError(err error, format string, args ...interface{}) error {
	return &vector.Error{Kind: vector.KindParse, Msg: fmt.Sprintf(format, args...), Err: err}
}

// writeJSON 先完整编码再写状态码，编码失败时返回 500
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{
			Kind:  vector.KindInvalidFormat.String(),
			Error: fmt.Sprintf("响应编码失败: %v", err),
		})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
