package service

// Paginate returns the sub-sequence [(page-1)*pageSize, page*pageSize) of
// items along with the total count before pagination. Pages past the end
// yield an empty (non-nil) slice.
func Paginate[T any](items []T, page, pageSize int) ([]T, int) {
	total := len(items)

	lo := (page - 1) * pageSize
	if lo >= total {
		return []T{}, total
	}
	hi := lo + pageSize
	if hi > total {
		hi = total
	}
	return items[lo:hi], total
}
