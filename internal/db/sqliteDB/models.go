package sqliteDB

type ClientStorage struct {
	Key       string
	Value     string
	UpdatedAt int64
}
