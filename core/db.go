package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops the orderings whose field is not in `fields`.
func AllowedOrderings(ordering []DBOrdering, fields ...string) []DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f] = struct{}{}
	}
	cleaned := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := allowed[ord.Field]; ok {
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}

// OrderByClause renders orderings as an SQL ORDER BY clause, falling back to `deflt` when empty.
func OrderByClause(ordering []DBOrdering, deflt ...DBOrdering) string {
	if len(ordering) == 0 {
		ordering = deflt
	}
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
