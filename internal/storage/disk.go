package storage

import (
	"errors"
	"io/fs"
	"os"
)

// walSuffixes are the files SQLite keeps beside the database in WAL mode.
var walSuffixes = []string{"", "-wal", "-shm"}

// databaseSize returns the combined size of the database file and its WAL sidecars.
// Files that do not exist count as zero.
func databaseSize(dbPath string) (int64, error) {
	var total int64
	for _, suffix := range walSuffixes {
		info, err := os.Stat(dbPath + suffix)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
