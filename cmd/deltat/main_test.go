package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/energyshield/internal/api"
	"github.com/banshee-data/energyshield/internal/lut"
	"github.com/banshee-data/energyshield/internal/lutsource"
	"github.com/banshee-data/energyshield/internal/testutil"
)

func writeLUT(t *testing.T) string {
	t.Helper()
	blob, err := lut.Marshal(testutil.TwoBandBands())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "shield.lut")
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestRun_File(t *testing.T) {
	path := writeLUT(t)

	out, err := runArgs(t, "-lut", path, "-r", "10")
	require.NoError(t, err)
	assert.Equal(t, "deltaT = 7 band=1 offset=5 cell=[4,2]\n", out)

	out, err = runArgs(t, "-lut", path, "-r", "0.5")
	require.NoError(t, err)
	assert.Equal(t, "deltaT = 0 (no band applies)\n", out)

	out, err = runArgs(t, "-lut", path, "-r", "20", "-limit", "100")
	require.NoError(t, err)
	assert.Equal(t, "deltaT = 8 (velocity bound) band=1 offset=5 cell=[4,2]\n", out)
}

func TestRun_Range(t *testing.T) {
	out, err := runArgs(t, "-lut", writeLUT(t), "-range", "0,1", "-r", "10")
	require.NoError(t, err)
	assert.Equal(t, "deltaT = 3 band=0 offset=0 cell=[4,2]\n", out)

	_, err = runArgs(t, "-lut", writeLUT(t), "-range", "1,3", "-r", "10")
	assert.ErrorIs(t, err, lut.ErrInvalidRange)

	_, err = runArgs(t, "-lut", writeLUT(t), "-range", "oops", "-r", "10")
	assert.Error(t, err)
}

func TestRun_JSON(t *testing.T) {
	out, err := runArgs(t, "-lut", writeLUT(t), "-r", "10", "-json")
	require.NoError(t, err)

	var res lut.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 7.0, res.DeltaT)
	assert.Equal(t, []float64{9, 4}, res.Margins)
}

func TestRun_ConfigFile(t *testing.T) {
	path := writeLUT(t)
	cfgPath := filepath.Join(t.TempDir(), "energyshield.json")
	cfg := `{"lut_path": "` + path + `", "long_delta_t_limit": 100}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := runArgs(t, "-config", cfgPath, "-r", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "deltaT = 8 (velocity bound)")

	// An explicit -limit beats the config value.
	out, err = runArgs(t, "-config", cfgPath, "-r", "20", "-limit", "0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "deltaT = 7 band=1"), out)
}

func TestRun_Server(t *testing.T) {
	srv := api.NewServer(testutil.QuietResolver(testutil.TwoBandTable(t)), "test", 0)
	ts := httptest.NewServer(srv.ServeMux())
	t.Cleanup(ts.Close)

	out, err := runArgs(t, "-server", ts.URL, "-r", "10")
	require.NoError(t, err)
	assert.Equal(t, "deltaT = 7 band=1 offset=5 cell=[4,2]\n", out)

	_, err = runArgs(t, "-server", ts.URL, "-r", "10", "-xi", "4")
	var re *api.RemoteError
	assert.ErrorAs(t, err, &re)
}

func TestRun_GRPC(t *testing.T) {
	gs := api.NewGRPCServer(api.NewServer(testutil.QuietResolver(testutil.TwoBandTable(t)), "test", 0))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	out, err := runArgs(t, "-grpc", lis.Addr().String(), "-r", "10")
	require.NoError(t, err)
	assert.Equal(t, "deltaT = 7 band=1 offset=5 cell=[4,2]\n", out)

	_, err = runArgs(t, "-grpc", lis.Addr().String(), "-r", "10", "-xi", "4")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "xi", api.StatusParam(err))
}

func TestRun_RemoteRejectsSourceFlags(t *testing.T) {
	cases := map[string][]string{
		"server with lut":   {"-server", "http://localhost:8080", "-lut", "a.lut", "-r", "10"},
		"server with range": {"-server", "http://localhost:8080", "-range", "0,1", "-r", "10"},
		"grpc with db":      {"-grpc", "localhost:9090", "-db", "lut.db", "-id", "x", "-r", "10"},
		"server and grpc":   {"-server", "http://localhost:8080", "-grpc", "localhost:9090", "-r", "10"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := runArgs(t, args...)
			require.Error(t, err)
		})
	}

	_, err := runArgs(t, "-server", "http://localhost:8080", "-lut", "a.lut", "-name", "n", "-r", "10")
	assert.EqualError(t, err, "-server cannot be combined with -lut, -name: the server owns its table")
}

func TestRun_Errors(t *testing.T) {
	_, err := runArgs(t, "-r", "10")
	assert.ErrorIs(t, err, lutsource.ErrNoSource)

	_, err = runArgs(t, "-lut", writeLUT(t), "-r", "10", "-xi", "4")
	assert.ErrorIs(t, err, lut.ErrOutOfRange)

	_, err = runArgs(t, "-lut", writeLUT(t), "stray")
	assert.Error(t, err)

	_, err = runArgs(t, "-lut", filepath.Join(t.TempDir(), "missing.lut"), "-r", "1")
	assert.Error(t, err)
}

func TestRun_Version(t *testing.T) {
	out, err := runArgs(t, "-version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "deltat dev"), out)
}
