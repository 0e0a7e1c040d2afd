package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func keysOf(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	return out
}

func TestSortByChild_TypeOrder(t *testing.T) {
	nodes := []Node{
		{Key: "str", Value: []byte(`{"week":"a"}`)},
		{Key: "num2", Value: []byte(`{"week":2}`)},
		{Key: "true", Value: []byte(`{"week":true}`)},
		{Key: "obj", Value: []byte(`{"week":{"x":1}}`)},
		{Key: "missing", Value: []byte(`{}`)},
		{Key: "false", Value: []byte(`{"week":false}`)},
		{Key: "num1", Value: []byte(`{"week":1.5}`)},
		{Key: "null", Value: []byte(`{"week":null}`)},
	}

	SortByChild(nodes, "week")

	assert.Equal(t, []string{"missing", "null", "false", "true", "num1", "num2", "str", "obj"}, keysOf(nodes))
}

func TestSortByChild_TiesBreakByKey(t *testing.T) {
	nodes := []Node{
		{Key: "c", Value: []byte(`{"name":"Control"}`)},
		{Key: "a", Value: []byte(`{"name":"Control"}`)},
		{Key: "b", Value: []byte(`{"name":"Aggro"}`)},
	}

	SortByChild(nodes, "name")

	assert.Equal(t, []string{"b", "a", "c"}, keysOf(nodes))
}

func TestSortByChild_NumbersCompareNumerically(t *testing.T) {
	nodes := []Node{
		{Key: "a", Value: []byte(`{"week":10}`)},
		{Key: "b", Value: []byte(`{"week":9}`)},
	}

	SortByChild(nodes, "week")

	assert.Equal(t, []string{"b", "a"}, keysOf(nodes))
}
