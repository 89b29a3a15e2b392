package lutdb

import (
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/energyshield/internal/httputil"
)

// AttachAdminRoutes mounts the tsweb debug index on mux with a tailsql
// console over the LUT database and a JSON listing of stored tables.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://lut.db", db.DB, &tailsql.DBOptions{
		Label: "LUT DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("lut-tables", "Stored lookup tables (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recs, err := db.ListTables(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, recs)
	}))
	return nil
}
