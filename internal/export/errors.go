package export

import "errors"

var (
	// ErrUnsupportedFormat is returned for a format other than csv or excel
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrEmptyTable is returned when there are no rows to export
	ErrEmptyTable = errors.New("no rows to export")
)
