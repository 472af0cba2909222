package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"

	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// SQLSTATE codes the pipeline treats specially
const (
	pqUndefinedColumn     = "42703"
	pqUndefinedTable      = "42P01"
	pqAdminShutdown       = "57P01"
	pqCrashShutdown       = "57P02"
	pqCannotConnectNow    = "57P03"
	pqTooManyConnections  = "53300"
	pqSerializationFailed = "40001"
	pqDeadlockDetected    = "40P01"
	pqConnectionClass     = "08"
	// a malformed key such as a non-UUID id cannot match any row
	pqInvalidTextRepresentation = "22P02"
)

// classifyError maps a driver error onto the application error taxonomy.
// Stale schema and availability problems become SCHEMA_STALE/UNAVAILABLE so
// callers can retry them; everything unrecognised is INTERNAL.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError(op + ": not found")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqInvalidTextRepresentation:
			return apperrors.NewNotFoundError(op + ": not found")
		case pqUndefinedColumn, pqUndefinedTable:
			return apperrors.NewSchemaStaleError(fmt.Sprintf("%s: schema is out of date", op), err)
		case pqAdminShutdown, pqCrashShutdown, pqCannotConnectNow, pqTooManyConnections,
			pqSerializationFailed, pqDeadlockDetected:
			return apperrors.NewUnavailableError(fmt.Sprintf("%s: database unavailable", op), err)
		}
		if string(pqErr.Code.Class()) == pqConnectionClass {
			return apperrors.NewUnavailableError(fmt.Sprintf("%s: database connection failed", op), err)
		}
		return apperrors.NewInternalError(op, err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUnavailableError(fmt.Sprintf("%s: database unavailable", op), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewUnavailableError(fmt.Sprintf("%s: database unreachable", op), err)
	}

	return apperrors.NewInternalError(op, err)
}
