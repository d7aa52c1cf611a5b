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

// Package projdb 读取 PROJ 坐标系数据库 proj.db 的元数据
package projdb

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/xiaofuX1/MiniGIS/vector"
)

const (
	keyLayoutMajor = "DATABASE.LAYOUT.VERSION.MAJOR"
	keyLayoutMinor = "DATABASE.LAYOUT.VERSION.MINOR"
	keyEPSGVersion = "EPSG.VERSION"
)

// Metadata proj.db 的库结构版本与 EPSG 数据集版本
type Metadata struct {
	LayoutMajor string
	LayoutMinor string
	EPSGVersion string
}

// Layout 形如 1.4
func (m Metadata) Layout() string {
	return m.LayoutMajor + "." + m.LayoutMinor
}

// Read 以只读方式打开 proj.db 并读取 metadata 表
func Read(path string) (Metadata, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open proj.db: %w", err)
	}
	defer db.Close()

	var m Metadata
	if m.LayoutMajor, err = value(db, keyLayoutMajor); err != nil {
		return Metadata{}, err
	}
	if m.LayoutMinor, err = value(db, keyLayoutMinor); err != nil {
		return Metadata{}, err
	}
	// 旧版本的库没有 EPSG.VERSION
	if v, err := value(db, keyEPSGVersion); err == nil {
		m.EPSGVersion = v
	}
	return m, nil
}

func value(db *sql.DB, key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("proj.db 缺少元数据 %s", key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

// Checker 实现 vector.ProjDBChecker
type Checker struct {
	Log zerolog.Logger
}

var _ vector.ProjDBChecker = Checker{}

func (c Checker) Check(path string) (string, bool) {
	m, err := Read(path)
	if err != nil {
		c.Log.Warn().Err(err).Str("path", path).Msg("无法读取proj.db")
		return "", false
	}
	c.Log.Debug().Str("layout", m.Layout()).Str("epsg", m.EPSGVersion).Msg("proj.db元数据")
	return m.Layout(), true
}
