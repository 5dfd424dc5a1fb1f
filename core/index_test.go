package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexDescriptor_ResolvedName(t *testing.T) {
	named := &IndexDescriptor{Name: "users_email_unique", Keys: []IndexKey{{Field: "email"}}}
	assert.Equal(t, "users_email_unique", named.ResolvedName("users"))

	generated := &IndexDescriptor{Keys: []IndexKey{{Field: "email"}, {Field: "tenant"}}}
	assert.Equal(t, "users_email_tenant_idx", generated.ResolvedName("users"))
}

func TestNormalizeOrder(t *testing.T) {
	cases := []struct {
		input    any
		expected int
	}{
		{1, 1},
		{-1, -1},
		{int64(-5), -1},
		{"asc", 1},
		{"ascending", 1},
		{"desc", -1},
		{"DESC", -1},
		{"descending", -1},
		{"-1", -1},
		{nil, 1},
		{"anything-else", 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, NormalizeOrder(c.input), "input %v", c.input)
	}
}
