package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err for a structured log line: the message, the typed
// code when there is one, every link of the wrap chain, and the Postgres
// diagnostics of whichever driver raised it. Empty diagnostics are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	fields["error_chain"] = chain

	var diag [6]string // code, constraint, table, column, detail, message
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		diag = [6]string{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}
	case errors.As(err, &pqErr):
		diag = [6]string{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}
	}
	for i, key := range [6]string{"pg_code", "pg_constraint", "pg_table", "pg_column", "pg_detail", "pg_message"} {
		if diag[i] != "" {
			fields[key] = diag[i]
		}
	}
	return fields
}
