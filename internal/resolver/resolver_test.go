package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/surrealcore/coredb/internal/cluster"
	"github.com/surrealcore/coredb/internal/resolver"
)

func TestResolveBest(t *testing.T) {
	nodes := []cluster.Node{
		{ID: "n1", Tags: []string{"index", "primary"}},
		{ID: "n2", Tags: []string{"index"}},
		{ID: "n3", Tags: []string{"coordinator"}},
	}

	r := resolver.NewStandardResolver()

	tests := []struct {
		name   string
		req    resolver.Requirement
		wantID string
	}{
		{
			name:   "prefers profile match among equal tag matches",
			req:    resolver.Requirement{Tags: []string{"index"}, Profile: "primary"},
			wantID: "n1",
		},
		{
			name:   "capability tag alone",
			req:    resolver.Requirement{Tags: []string{"coordinator"}},
			wantID: "n3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ResolveBest(nodes, tt.req)
			assert.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolveAllOrdersByScore(t *testing.T) {
	nodes := []cluster.Node{
		{ID: "A", Tags: []string{"tag1", "tag2"}},
		{ID: "B", Tags: []string{"tag1"}},
		{ID: "C", Tags: []string{}},
	}

	r := resolver.NewStandardResolver()
	req := resolver.Requirement{Tags: []string{"tag1", "tag2"}}
	got := r.ResolveAll(nodes, req)

	assert.Len(t, got, 3)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, "B", got[1].ID)
	assert.Equal(t, "C", got[2].ID)
}

func TestResolveBestReturnsNilForEmptyNodeList(t *testing.T) {
	r := resolver.NewStandardResolver()
	got := r.ResolveBest(nil, resolver.Requirement{Tags: []string{"index"}})
	assert.Nil(t, got)
}
