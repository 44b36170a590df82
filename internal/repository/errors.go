package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolationCode はPostgreSQLのunique_violationエラーコード。
const uniqueViolationCode = "23505"

// IsUniqueViolation は一意制約違反によるエラーかを判定する。
// 同時INSERTの競合（ユーザー初回ログイン、ラベル二重送信）のリカバリ判定に使用する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
