package errs

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUniqueViolation = errors.New("unique constraint violation")

type DBError struct {
	Err error
}

func (e *DBError) Error() string {
	return e.Err.Error()
}

func (e *DBError) Unwrap() error {
	return e.Err
}

func NewDBError(err error) *DBError {
	return &DBError{Err: err}
}

var detailRegexp = regexp.MustCompile(`\([^()]+\)`)

// ConvertError turns a unique violation into a DBError naming the
// conflicting columns, e.g. "unique constraint violation: (endpoint)=(stripe)".
func ConvertError(err error) error {
	if err == nil {
		return nil
	}

	if IsUniqueViolation(err) {
		var pgErr *pgconn.PgError
		errors.As(err, &pgErr)
		matches := detailRegexp.FindAllString(pgErr.Detail, -1)
		var strs []string
		for i := 0; i+1 < len(matches); i = i + 2 {
			strs = append(strs, fmt.Sprintf("%s=%s", matches[i], matches[i+1]))
		}
		if len(strs) == 0 {
			return NewDBError(ErrUniqueViolation)
		}
		return NewDBError(fmt.Errorf("%w: %s", ErrUniqueViolation, strings.Join(strs, ", ")))
	}

	return err
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
