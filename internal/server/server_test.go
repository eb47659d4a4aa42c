// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/internal/coordinator"
	"github.com/openshelf/openshelf/internal/guard"
	"github.com/openshelf/openshelf/internal/realtime"
	"github.com/openshelf/openshelf/pkg/types"
)

type stubStore struct {
	results []types.CandidateResult
	err     error
	gotNorm string
	gotF    types.Filters
}

func (s *stubStore) Search(_ context.Context, normalized string, f types.Filters, limit int) ([]types.CandidateResult, error) {
	s.gotNorm = normalized
	s.gotF = f
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > limit {
		return s.results[:limit], nil
	}
	return s.results, nil
}

func newTestServer(store coordinator.Store) *httptest.Server {
	hub := realtime.NewHub()
	coord := coordinator.New(store, nil, guard.NewRegistry(types.GuardConfig{}), hub, types.SearchConfig{DesiredTotal: 12}, nil)
	return httptest.NewServer(New(coord, hub, types.ServerConfig{}, nil))
}

func TestSearchEndpoint(t *testing.T) {
	store := &stubStore{results: []types.CandidateResult{
		{LocalID: "1", Slug: "dune", Title: "Dune", Authors: []string{"Frank Herbert"}, Source: types.SourceLocal},
	}}
	srv := newTestServer(store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?q=Dune&year=1965&order=newest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rs types.ResultSet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rs))
	require.Len(t, rs.Results, 1)
	assert.Equal(t, "Dune", rs.Results[0].Title)
	assert.NotEmpty(t, rs.QueryHash)

	assert.Equal(t, "dune", store.gotNorm)
	assert.Equal(t, 1965, store.gotF.PublishedYear)
	assert.Equal(t, types.OrderNewest, store.gotF.OrderBy)
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	srv := newTestServer(&stubStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchEndpointStoreFailure(t *testing.T) {
	srv := newTestServer(&stubStore{err: errors.New("locked")})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?q=dune")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
