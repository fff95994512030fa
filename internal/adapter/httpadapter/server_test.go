package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/burn-scar-detection/internal/adapter/httpadapter"
	"github.com/couchcryptid/burn-scar-detection/internal/domain"
	"github.com/couchcryptid/burn-scar-detection/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type stubReadiness struct {
	err error
}

func (s stubReadiness) CheckReadiness(context.Context) error { return s.err }

type stubMasks struct {
	mask domain.Raster
	ok   bool
}

func (s stubMasks) LatestMask() (domain.Raster, bool) { return s.mask, s.ok }

type stubRuns struct {
	runs  []store.Run
	err   error
	limit int
}

func (s *stubRuns) ListRuns(_ context.Context, limit int) ([]store.Run, error) {
	s.limit = limit
	return s.runs, s.err
}

func testMask(t *testing.T) domain.Raster {
	t.Helper()
	grid := domain.Grid{
		Width:  2,
		Height: 2,
		Bound:  orb.Bound{Min: orb.Point{146.80, -36.78}, Max: orb.Point{146.82, -36.76}},
	}
	r := domain.NewUniformRaster(grid, "nd", 1)
	r.SetValid(0, 0, false)
	return r
}

func doRequest(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProbes(t *testing.T) {
	t.Run("healthz is always ok", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, nil, testLogger)
		rec := doRequest(t, srv, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "healthy"}`, rec.Body.String())
	})

	t.Run("readyz reflects the checker", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{err: errors.New("no detection run has completed yet")}, stubMasks{}, nil, testLogger)
		rec := doRequest(t, srv, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "no detection run")

		srv = httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, nil, testLogger)
		rec = doRequest(t, srv, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics endpoint responds", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, nil, testLogger)
		rec := doRequest(t, srv, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBurnScarEndpoints(t *testing.T) {
	t.Run("503 before the first run", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, nil, testLogger)
		rec := doRequest(t, srv, "/v1/burn-scar.png")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("204 when both seasons were empty", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{ok: true}, nil, testLogger)
		rec := doRequest(t, srv, "/v1/burn-scar.png")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.Bytes())
	})

	t.Run("serves the mask as png", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{mask: testMask(t), ok: true}, nil, testLogger)
		rec := doRequest(t, srv, "/v1/burn-scar.png")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

		img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 2, img.Bounds().Dx())
		assert.Equal(t, 2, img.Bounds().Dy())
	})

	t.Run("serves the mask as tiff", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{mask: testMask(t), ok: true}, nil, testLogger)
		rec := doRequest(t, srv, "/v1/burn-scar.tif")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/tiff", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Body.Bytes())
	})
}

func TestRunsEndpoint(t *testing.T) {
	t.Run("absent without a lister", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, nil, testLogger)
		rec := doRequest(t, srv, "/v1/runs")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns recent runs with the default limit", func(t *testing.T) {
		lister := &stubRuns{runs: []store.Run{{ID: 2, Outcome: store.OutcomeOK}, {ID: 1, Outcome: store.OutcomeError}}}
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, lister, testLogger)

		rec := doRequest(t, srv, "/v1/runs")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 20, lister.limit)

		var runs []store.Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
		require.Len(t, runs, 2)
		assert.Equal(t, int64(2), runs[0].ID)
	})

	t.Run("caps and validates the limit", func(t *testing.T) {
		lister := &stubRuns{}
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, lister, testLogger)

		rec := doRequest(t, srv, "/v1/runs?limit=5")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, lister.limit)

		rec = doRequest(t, srv, "/v1/runs?limit=500")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 100, lister.limit)

		for _, bad := range []string{"0", "-1", "many"} {
			rec = doRequest(t, srv, "/v1/runs?limit="+bad)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("empty ledger serializes as an empty list", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, &stubRuns{}, testLogger)
		rec := doRequest(t, srv, "/v1/runs")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("ledger failure is a 500", func(t *testing.T) {
		lister := &stubRuns{err: errors.New("database is locked")}
		srv := httpadapter.NewServer(":0", stubReadiness{}, stubMasks{}, lister, testLogger)
		rec := doRequest(t, srv, "/v1/runs")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
