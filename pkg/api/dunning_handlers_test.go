package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

type sequenceConflict struct {
	Current dunning.Sequence `json:"current"`
}

func dunningServer(f *fakeDunning) *Server {
	s := NewServer(nil, nil)
	s.RegisterRoutes(NewDunningHandlers(f))
	return s
}

func view(id string, status dunning.Status) dunning.View {
	return dunning.View{Sequence: dunning.Sequence{ID: id, Status: status, Version: "v1"}}
}

func TestDunning_List(t *testing.T) {
	f := &fakeDunning{views: []dunning.View{view("s1", dunning.StatusActive)}}
	s := dunningServer(f)

	w := do(t, s, http.MethodGet, "/v1/dunning", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dunning.StatusAll, f.status)
	assert.Len(t, decode[[]dunning.View](t, w), 1)

	w = do(t, s, http.MethodGet, "/v1/dunning?status=escalated", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dunning.StatusEscalated, f.status)

	w = do(t, s, http.MethodGet, "/v1/dunning?status=PAUSED", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDunning_GetAndStatistics(t *testing.T) {
	f := &fakeDunning{views: []dunning.View{view("s1", dunning.StatusActive)}}
	s := dunningServer(f)

	w := do(t, s, http.MethodGet, "/v1/dunning/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", decode[dunning.View](t, w).ID)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/dunning/s9", "").Code)

	w = do(t, s, http.MethodGet, "/v1/dunning/statistics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[dunning.Statistics](t, w).ActiveSequences)
}

func TestDunning_Act(t *testing.T) {
	seq := dunning.Sequence{ID: "s1", Status: dunning.StatusEscalated, Version: "v2"}
	f := &fakeDunning{result: dunning.Result{Sequence: seq}}

	w := do(t, dunningServer(f), http.MethodPost, "/v1/dunning/s1/actions/escalate", `{"version":"v1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dunning.StatusEscalated, decode[dunning.Result](t, w).Sequence.Status)
}

func TestDunning_ActUnknown(t *testing.T) {
	w := do(t, dunningServer(&fakeDunning{}), http.MethodPost, "/v1/dunning/s1/actions/forgive", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDunning_ActConflictReturnsCurrent(t *testing.T) {
	seq := dunning.Sequence{ID: "s1", Status: dunning.StatusRecovered, Version: "v5"}
	f := &fakeDunning{
		result: dunning.Result{Sequence: seq},
		err:    fmt.Errorf("sequence s1 changed concurrently: %w", lifecycle.ErrConflict),
	}

	w := do(t, dunningServer(f), http.MethodPost, "/v1/dunning/s1/actions/retry-payment", `{"version":"v1"}`)

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[sequenceConflict](t, w)
	assert.Equal(t, "v5", resp.Current.Version)
}

func TestDunning_ActNotApplicable(t *testing.T) {
	f := &fakeDunning{err: dunning.ErrActionNotApplicable}

	w := do(t, dunningServer(f), http.MethodPost, "/v1/dunning/s1/actions/escalate", "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
