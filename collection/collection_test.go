package collection_test

import (
	"testing"

	"github.com/julea-io/julea/collection"
)

func TestNewRejectsSlashInName(t *testing.T) {
	if _, err := collection.New("a/b"); err == nil {
		t.Fatal("expected an error for a name containing '/'")
	}
}

func TestNewRejectsEmptyName(t *testing.T) {
	if _, err := collection.New(""); err == nil {
		t.Fatal("expected an error for an empty name")
	}
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a, err := collection.New("a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := collection.New("a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ID() == b.ID() {
		t.Fatal("two collections of the same name must still get distinct ids")
	}
}
