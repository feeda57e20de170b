package aggregate

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// ExportSQLite writes the four summary tables into the database at path,
// replacing tables of the same name.
func ExportSQLite(path string, s *Summary) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, t := range []table{
		s.cvTable(),
		s.testTable(),
		combinedTable("cv_test_scores", s.Combined),
		combinedTable("cv_test_scores_selected", s.Selected),
	} {
		if err := writeTable(tx, t); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit")
	}
	return nil
}

func columnType(name string) string {
	switch name {
	case "model", "data", "workflow_name", "workflow_name_updated":
		return "TEXT"
	default:
		return "REAL"
	}
}

func writeTable(tx *sql.Tx, t table) error {
	defs := make([]string, len(t.columns))
	marks := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = c + " " + columnType(c)
		marks[i] = "?"
	}
	if _, err := tx.Exec("DROP TABLE IF EXISTS " + t.name); err != nil {
		return errors.Wrapf(err, "failed to drop %s", t.name)
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", t.name, strings.Join(defs, ", "))); err != nil {
		return errors.Wrapf(err, "failed to create %s", t.name)
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(t.columns, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return errors.Wrapf(err, "failed to prepare insert into %s", t.name)
	}
	defer stmt.Close()
	args := make([]interface{}, len(t.columns))
	for _, row := range t.rows {
		for j, v := range row {
			args[j] = sqlValue(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return errors.Wrapf(err, "failed to insert into %s", t.name)
		}
	}
	return nil
}
