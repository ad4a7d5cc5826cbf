package models

// FilterKey identifies the table a remembered filter belongs to
type FilterKey struct {
	Host     string
	Database string
	Table    string
}
