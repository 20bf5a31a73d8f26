//go:build sqlite_mattn

package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const sqliteDriver = "sqlite3"

func buildSQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", sqlitePath(path))
}

func IsSqliteBusyError(err error) bool {
	var sqliteErr sqlite3.Error
	// sqlite3.Error{
	//   Code:         5,
	//   ExtendedCode: 5,
	//   SystemErrno:  0,
	//   err:          "database is locked",
	// }
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrBusy
}
