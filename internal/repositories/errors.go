package repositories

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateUser  = errors.New("user name or email is already used")
	ErrPostNotFound   = errors.New("post not found")
	ErrFollowNotFound = errors.New("follow relationship not found")
	ErrLikeNotFound   = errors.New("like not found")
	ErrAlreadyExists  = errors.New("edge already exists")
	ErrSelfReference  = errors.New("edge endpoints must differ")
	ErrNotFound       = errors.New("record not found")
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, with wildcards in s escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
