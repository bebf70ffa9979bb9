package index

// CardIndex defines the interface for card indexing operations. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with mocks.
type CardIndex interface {
	UpsertCard(c CardRow, body string) error
	DeleteCard(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	ListCards(section, docType string, limit, offset int) ([]CardRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies CardIndex at compile time.
var _ CardIndex = (*DB)(nil)
