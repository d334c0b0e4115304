package audit

import "github.com/maisonnoire/trufflehouse-backend/pkg/pagination"

func paginationParams(limit int, cursor string) pagination.Params {
	return pagination.Params{Limit: limit, Cursor: cursor}
}
