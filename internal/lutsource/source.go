// Package lutsource locates and loads the lookup table a command should
// serve, either from a blob file or from the LUT database.
package lutsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/energyshield/internal/config"
	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
	"github.com/banshee-data/energyshield/internal/lutdb"
)

// ErrNoSource is returned when neither a file nor a database is given.
var ErrNoSource = errors.New("no lut source: set a lut file or a lut database")

// Source names one table.
type Source struct {
	Path    string
	DBPath  string
	TableID string // empty selects the latest table
	Name    string // restricts the latest lookup to one name
	Range   *lut.Range
}

// FromConfig builds a Source from the table fields of c.
func FromConfig(c *config.ServiceConfig) Source {
	return Source{
		Path:    c.GetLUTPath(),
		DBPath:  c.GetLUTDBPath(),
		TableID: c.GetLUTTableID(),
		Name:    c.GetLUTName(),
		Range:   c.GetBandRange(),
	}
}

func (s Source) String() string {
	var desc string
	switch {
	case s.Path != "":
		desc = "file:" + s.Path
	case s.TableID != "":
		desc = fmt.Sprintf("db:%s#%s", s.DBPath, s.TableID)
	case s.Name != "":
		desc = fmt.Sprintf("db:%s#latest(%s)", s.DBPath, s.Name)
	default:
		desc = fmt.Sprintf("db:%s#latest", s.DBPath)
	}
	if s.Range != nil {
		desc += " bands " + s.Range.String()
	}
	return desc
}

// Load reads the table. db may be an already open LUT database; when nil
// and the source is a database, it is opened for the duration of the call.
func (s Source) Load(ctx context.Context, fsys fsutil.FileSystem, db *lutdb.DB) (*lut.Table, error) {
	if s.Path != "" {
		if s.DBPath != "" {
			return nil, fmt.Errorf("lut file and lut database are mutually exclusive")
		}
		return lut.LoadFile(fsys, s.Path, s.Range)
	}
	if s.DBPath == "" {
		return nil, ErrNoSource
	}

	if db == nil {
		opened, err := lutdb.Open(s.DBPath)
		if err != nil {
			return nil, err
		}
		defer opened.Close()
		db = opened
	}

	if s.TableID != "" {
		id, err := uuid.Parse(s.TableID)
		if err != nil {
			return nil, fmt.Errorf("invalid table id %q: %w", s.TableID, err)
		}
		return db.LoadTable(ctx, id, s.Range)
	}
	tbl, _, err := db.LatestTable(ctx, s.Name, s.Range)
	return tbl, err
}
