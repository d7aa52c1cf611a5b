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
	"path/filepath"
	"testing"

	"github.com/cheekybits/is"
	"github.com/rs/zerolog"

	"github.com/xiaofuX1/MiniGIS/vector"
	"github.com/xiaofuX1/MiniGIS/vector/vectortest"
)

func newOpener(engine vector.Engine) *vector.DatasetOpener {
	log := zerolog.Nop()
	return vector.NewDatasetOpener(engine, vector.NewEncodingResolver(log), nil, log)
}

func TestOpenerFallsBackThroughEncodings(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "roads.shp")

	engine := vectortest.New()
	engine.Add(path, &vectortest.DatasetSpec{Layers: []*vectortest.LayerSpec{{Name: "roads"}}})
	engine.Accept = func(_ string, options []string) bool {
		return len(options) == 1 && options[0] == "ENCODING=UTF-8"
	}

	ds, err := newOpener(engine).Open(path)
	is.NoErr(err)
	defer ds.Close()

	calls := engine.Calls()
	is.Equal(len(calls), 2)
	is.Equal(calls[0].Options, []string{"ENCODING=GBK"})
	is.Equal(calls[1].Options, []string{"ENCODING=UTF-8"})
}

func TestOpenerSkipsOptionForDefaultCandidate(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "roads.shp")

	engine := vectortest.New()
	engine.Add(path, &vectortest.DatasetSpec{})
	engine.Accept = func(_ string, options []string) bool { return len(options) == 0 }

	ds, err := newOpener(engine).Open(path)
	is.NoErr(err)
	ds.Close()

	calls := engine.Calls()
	is.Equal(len(calls), 3)
	is.Equal(len(calls[2].Options), 0)
}

func TestOpenerAggregatesFailure(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "broken.kml")

	engine := vectortest.New()
	engine.Add(path, &vectortest.DatasetSpec{})
	engine.Accept = func(string, []string) bool { return false }

	_, err := newOpener(engine).Open(path)
	is.True(err != nil)
	is.True(vector.IsKind(err, vector.KindFileRead))
	is.Equal(len(engine.Calls()), 2)
	is.Equal(engine.OpenDatasets(), 0)
}

func TestOpenerPlainOpenForOtherFormats(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "parcels.gpkg")

	engine := vectortest.New()
	engine.Add(path, &vectortest.DatasetSpec{})

	ds, err := newOpener(engine).Open(path)
	is.NoErr(err)
	ds.Close()

	calls := engine.Calls()
	is.Equal(len(calls), 1)
	is.Equal(len(calls[0].Options), 0)
}

func TestOpenerPlainOpenFailureIsFileRead(t *testing.T) {
	_, err := newOpener(vectortest.New()).Open("/nowhere/parcels.gpkg")
	if !vector.IsKind(err, vector.KindFileRead) {
		t.Fatalf("expected FileReadError, got %v", err)
	}
}
