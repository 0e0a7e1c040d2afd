package store

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Sort ranks of child values: null < false < true < numbers < strings < objects.
const (
	rankNull = iota
	rankFalse
	rankTrue
	rankNumber
	rankString
	rankObject
)

// SortByChild orders nodes by the value of a child field, ascending, ties by key.
// Records without the field sort first, as null.
func SortByChild(nodes []Node, field string) {
	slices.SortStableFunc(nodes, func(a, b Node) int {
		return CompareByChild(a, b, field)
	})
}

// CompareByChild compares two nodes by a child field, falling back to their keys.
func CompareByChild(a, b Node, field string) int {
	if c := compareValues(gjson.GetBytes(a.Value, field), gjson.GetBytes(b.Value, field)); c != 0 {
		return c
	}
	return strings.Compare(a.Key, b.Key)
}

func compareValues(a, b gjson.Result) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNumber:
		return cmp.Compare(a.Num, b.Num)
	case rankString:
		return strings.Compare(a.Str, b.Str)
	default:
		return 0
	}
}

func rank(r gjson.Result) int {
	switch r.Type {
	case gjson.False:
		return rankFalse
	case gjson.True:
		return rankTrue
	case gjson.Number:
		return rankNumber
	case gjson.String:
		return rankString
	case gjson.JSON:
		return rankObject
	default:
		return rankNull
	}
}
