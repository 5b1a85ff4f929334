package search

import (
	"context"
	"errors"
	"testing"
)

func TestSearchOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want searchOpts
	}{
		{"defaults", nil, searchOpts{topK: defaultTopK}},
		{"top k", []Option{WithTopK(12)}, searchOpts{topK: 12}},
		{"top k zero ignored", []Option{WithTopK(0)}, searchOpts{topK: defaultTopK}},
		{"top k over max ignored", []Option{WithTopK(500)}, searchOpts{topK: defaultTopK}},
		{"document filter", []Option{WithDocument(7)}, searchOpts{topK: defaultTopK, documentID: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchOpts{topK: defaultTopK}
			for _, opt := range tt.opts {
				opt(&got)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := &Store{}
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := s.Search(context.Background(), q); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Search(%q) error = %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(nil, nil, nil); err == nil {
		t.Error("NewStore with nil pool should fail")
	}
}
