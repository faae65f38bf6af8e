package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

// PGDiagnostics holds the server-side fields of a Postgres error, whichever
// driver raised it.
type PGDiagnostics struct {
	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// ErrorDump is written to logs for every failed request and only reaches the
// client when debug output is on.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	// Combined lists the members of a multi-error, e.g. a failed rollback
	// joined to the error that caused it.
	Combined []string `json:"combined,omitempty"`
	PGDiagnostics
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	d.Chain, d.Combined = unwind(err)
	d.PGDiagnostics = postgresDiagnostics(err)
	return d
}

// unwind walks single-cause wrapping and stops at the first multi-error.
func unwind(err error) (chain, combined []string) {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		chain = append(chain, fmt.Sprintf("%T: %v", cur, cur))
		members := multierr.Errors(cur)
		if len(members) < 2 {
			continue
		}
		for _, member := range members {
			combined = append(combined, member.Error())
		}
		return chain, combined
	}
	return chain, nil
}

func postgresDiagnostics(err error) PGDiagnostics {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGDiagnostics{
			PGCode:       pgxErr.Code,
			PGConstraint: pgxErr.ConstraintName,
			PGTable:      pgxErr.TableName,
			PGColumn:     pgxErr.ColumnName,
			PGDetail:     pgxErr.Detail,
			PGMessage:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDiagnostics{
			PGCode:       string(pqErr.Code),
			PGConstraint: pqErr.Constraint,
			PGTable:      pqErr.Table,
			PGColumn:     pqErr.Column,
			PGDetail:     pqErr.Detail,
			PGMessage:    pqErr.Message,
		}
	}
	return PGDiagnostics{}
}
