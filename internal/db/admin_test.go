package db

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swing.report/internal/testutil"
)

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.NewLocalRequest(http.MethodGet, "/debug/backup", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "swing-backup-")

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")), "backup is not a sqlite file")
}

func TestAttachAdminRoutes_TailSQLMounted(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.NewLocalRequest(http.MethodGet, "/debug/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "tailsql"), "debug index should link tailsql")
}

func TestRunMigrateCommand(t *testing.T) {
	path := testutil.TempDBPath(t)

	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{args: []string{"version"}, want: "schema version 0\n"},
		{args: []string{"up"}, want: "schema version 2\n"},
		{args: []string{"down"}, want: "schema version 1\n"},
		{args: []string{"force", "2"}, want: "schema version 2\n"},
		{args: []string{"force", "two"}, wantErr: true},
		{args: []string{"sideways"}, wantErr: true},
		{args: nil, wantErr: true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		err := RunMigrateCommand(tt.args, path, &out)
		if tt.wantErr {
			assert.Error(t, err, "args %q", tt.args)
			continue
		}
		require.NoError(t, err, "args %q", tt.args)
		assert.Equal(t, tt.want, out.String(), "args %q", tt.args)
	}
}
