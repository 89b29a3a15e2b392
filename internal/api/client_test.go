package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/energyshield/internal/httputil"
	"github.com/banshee-data/energyshield/internal/lut"
)

func TestClient_AgainstServer(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(setupTestServer(t).ServeMux())
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL+"/", nil)
	ctx := context.Background()

	res, err := c.Resolve(ctx, lut.Query{R: 10, LongDeltaTLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.DeltaT)
	assert.Equal(t, 1, res.Band)

	_, err = c.Resolve(ctx, lut.Query{R: 10, Xi: 4})
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
	assert.Equal(t, "xi", re.Param)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5}, info.Offsets)
}

func TestClient_QueryEncoding(t *testing.T) {
	t.Parallel()
	stub := (&httputil.StubDoer{}).Reply(http.StatusOK, `{"delta_t":1.5,"band":0}`)
	c := NewClient("http://lut.local", stub)

	res, err := c.Resolve(context.Background(), lut.Query{R: 2.25, Xi: -0.5, Beta: 0.125, LongDeltaTLimit: 3, Debug: true})
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.DeltaT)

	reqs := stub.Requests()
	require.Len(t, reqs, 1)
	q := reqs[0].URL.Query()
	assert.Equal(t, "/api/deltat", reqs[0].URL.Path)
	assert.Equal(t, "2.25", q.Get("r"))
	assert.Equal(t, "-0.5", q.Get("xi"))
	assert.Equal(t, "0.125", q.Get("beta"))
	assert.Equal(t, "3", q.Get("limit"))
	assert.Equal(t, "true", q.Get("debug"))
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()
	transport := errors.New("connection refused")
	stub := (&httputil.StubDoer{}).
		Reply(http.StatusBadGateway, "bad gateway\n").
		Fail(transport).
		Reply(http.StatusOK, "not json")
	c := NewClient("http://lut.local", stub)
	ctx := context.Background()

	_, err := c.Info(ctx)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "bad gateway", re.Message)
	assert.Equal(t, "server returned 502: bad gateway", re.Error())

	_, err = c.Info(ctx)
	assert.ErrorIs(t, err, transport)

	_, err = c.Info(ctx)
	assert.ErrorContains(t, err, "failed to decode")
}
