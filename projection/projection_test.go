package projection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/lattice/projection"
	"github.com/jacentio/lattice/record"
)

// --- Lookup / Set Tests ---

func TestLookup(t *testing.T) {
	p := projection.Projection{
		"name": true,
		"live": projection.Projection{"city": true},
		"off":  false,
		"raw":  map[string]any{"x": true},
	}

	tests := []struct {
		path    string
		wantOK  bool
		wantSub projection.Projection
	}{
		{"name", true, nil},
		{"name.deeper", true, nil},
		{"live", true, projection.Projection{"city": true}},
		{"live.city", true, nil},
		{"live.country", false, nil},
		{"off", false, nil},
		{"missing", false, nil},
		{"raw", true, projection.Projection{"x": true}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			sub, ok := p.Lookup(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}

func TestLookup_NilSelectsEverything(t *testing.T) {
	var p projection.Projection
	sub, ok := p.Lookup("any.path")
	assert.True(t, ok)
	assert.Nil(t, sub)
}

func TestSet_AncestorTrueIsNoop(t *testing.T) {
	p := projection.Projection{"user": true}
	p.Set("user.id")

	assert.Equal(t, projection.Projection{"user": true}, p)
}

func TestSet_CreatesBranches(t *testing.T) {
	p := projection.Of("user.id", "user.live.city", "title")

	assert.Equal(t, projection.Projection{
		"user":  projection.Projection{"id": true, "live": projection.Projection{"city": true}},
		"title": true,
	}, p)
}

// --- AddAssociationRef Tests ---

func TestAddAssociationRef(t *testing.T) {
	p := projection.Projection{"user": projection.Projection{"firstName": true}}

	got := p.AddAssociationRef("user", "userId")

	assert.Equal(t, projection.Projection{
		"user":   projection.Projection{"firstName": true},
		"userId": true,
	}, got)
	assert.NotContains(t, p, "userId", "receiver must not be modified")
}

func TestAddAssociationRef_FieldNotSelected(t *testing.T) {
	p := projection.Projection{"title": true}

	got := p.AddAssociationRef("user", "userId")

	assert.Equal(t, projection.Projection{"title": true}, got)
}

func TestAddAssociationRef_NestedField(t *testing.T) {
	p := projection.Of("meta.owner.name")

	got := p.AddAssociationRef("meta.owner", "meta.ownerId")

	assert.True(t, got.Selects("meta.ownerId"))
	assert.True(t, got.Selects("meta.owner.name"))
}

func TestAddAssociationRef_Nil(t *testing.T) {
	var p projection.Projection
	assert.Nil(t, p.AddAssociationRef("user", "userId"))
}

// --- Merge / Intersects Tests ---

func TestMerge(t *testing.T) {
	a := projection.Projection{"a": true, "b": projection.Projection{"x": true}}
	b := projection.Projection{"b": projection.Projection{"y": true}, "c": true, "a": projection.Projection{"z": true}}

	got := projection.Merge(a, b)

	assert.Equal(t, projection.Projection{
		"a": true,
		"b": projection.Projection{"x": true, "y": true},
		"c": true,
	}, got)
	assert.Nil(t, projection.Merge(a, nil))
}

func TestIntersects(t *testing.T) {
	a := projection.Of("live.city", "name")

	assert.True(t, projection.Intersects(a, projection.Of("live")))
	assert.True(t, projection.Intersects(a, projection.Of("name")))
	assert.False(t, projection.Intersects(a, projection.Of("live.country")))
	assert.True(t, projection.Intersects(nil, a))
	assert.False(t, projection.Intersects(projection.Projection{}, a))
}

// --- Apply / Paths / Key Tests ---

func TestApply(t *testing.T) {
	rec := record.Record{
		"id":    "p1",
		"title": "Hello",
		"meta":  record.Record{"views": 3, "likes": 4},
		"comments": []any{
			record.Record{"text": "a", "by": "u1"},
			record.Record{"text": "b", "by": "u2"},
		},
	}
	p := projection.Projection{
		"id":       true,
		"meta":     projection.Projection{"views": true},
		"comments": projection.Projection{"text": true},
		"missing":  true,
	}

	got := projection.Apply(rec, p)

	assert.Equal(t, record.Record{
		"id":   "p1",
		"meta": record.Record{"views": 3},
		"comments": []any{
			record.Record{"text": "a"},
			record.Record{"text": "b"},
		},
	}, got)
}

func TestApply_NilCopies(t *testing.T) {
	rec := record.Record{"a": record.Record{"b": 1}}
	got := projection.Apply(rec, nil)
	got["a"].(record.Record)["b"] = 2

	assert.Equal(t, 1, rec["a"].(record.Record)["b"])
}

func TestPaths(t *testing.T) {
	p := projection.Projection{"b": true, "a": projection.Projection{"y": true, "x": false}}

	assert.Equal(t, []string{"a.y", "b"}, p.Paths())
}

func TestKey(t *testing.T) {
	k1, err := projection.Of("a", "b.c").Key("users")
	require.NoError(t, err)
	k2, err := projection.Of("b.c", "a").Key("users")
	require.NoError(t, err)
	k3, err := projection.Of("a").Key("users")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
