// Package lutdb stores serialised delay-margin lookup tables in SQLite.
//
// Each stored table is the gob+gzip blob produced by lut.Marshal plus a
// summary (band count, offset span, problem parameters) so tables can be
// listed without decoding. The schema is managed by embedded golang-migrate
// migrations applied on Open.
package lutdb
