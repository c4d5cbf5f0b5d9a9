package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func field(name string, children ...*FieldSelection) *FieldSelection {
	return &FieldSelection{Field: name, Children: children}
}

func TestPrint(t *testing.T) {
	fields := []*FieldSelection{
		{Field: "location", Arguments: []Argument{{Name: "id", Value: `"1"`}, {Name: "limit", Value: "5"}}, Children: []*FieldSelection{
			field("name"),
			{Field: "name", Alias: "title"},
			{Field: "id", Alias: "id"},
			field("reviews", field("comment")),
		}},
		field("__typename"),
	}
	assert.Equal(t, `location(id: "1", limit: 5){name title: name id reviews{comment}} __typename`, Print(fields))
	assert.Equal(t, "reviews{comment}", fields[0].Children[3].String())
	assert.Equal(t, "", Print(nil))
}

func TestEnsureField(t *testing.T) {
	t.Run("existing plain selection", func(t *testing.T) {
		fields := []*FieldSelection{{Field: "id", Alias: "locationId"}, field("name")}
		key, out := EnsureField(fields, "id")
		assert.Equal(t, "locationId", key)
		assert.Len(t, out, 2)
	})

	t.Run("missing selection is appended", func(t *testing.T) {
		key, out := EnsureField([]*FieldSelection{field("name")}, "id")
		assert.Equal(t, "id", key)
		assert.Equal(t, "name id", Print(out))
	})

	t.Run("taken response key is aliased", func(t *testing.T) {
		key, out := EnsureField([]*FieldSelection{{Field: "name", Alias: "id"}}, "id")
		assert.Equal(t, "_key_id", key)
		assert.Equal(t, "id: name _key_id: id", Print(out))
	})

	t.Run("selection with arguments is not reused", func(t *testing.T) {
		key, out := EnsureField([]*FieldSelection{{Field: "id", Arguments: []Argument{{Name: "format", Value: "SHORT"}}}}, "id")
		assert.Equal(t, "_key_id", key)
		assert.Equal(t, "id(format: SHORT) _key_id: id", Print(out))
	})

	t.Run("response keys of reserved siblings are taken", func(t *testing.T) {
		siblings := []*FieldSelection{field("name"), field("reviews", field("comment")), {Field: "forecast", Alias: "id"}}
		key, out := EnsureField([]*FieldSelection{field("name")}, "id", siblings)
		assert.Equal(t, "_key_id", key)
		assert.Equal(t, "name _key_id: id", Print(out))
	})

	t.Run("alias is suffixed until it is free", func(t *testing.T) {
		fields := []*FieldSelection{{Field: "name", Alias: "id"}, {Field: "name", Alias: "_key_id"}}
		siblings := []*FieldSelection{{Field: "forecast", Alias: "_key_id_1"}}
		key, out := EnsureField(fields, "id", siblings)
		assert.Equal(t, "_key_id_2", key)
		assert.Equal(t, "id: name _key_id: name _key_id_2: id", Print(out))
	})
}

func TestDeepCopy(t *testing.T) {
	original := []*FieldSelection{
		{Field: "location", Arguments: []Argument{{Name: "id", Value: `"1"`}}, Children: []*FieldSelection{field("name")}},
	}
	copied := DeepCopy(original)
	assert.Equal(t, original, copied)

	copied[0].Arguments[0].Value = `"2"`
	copied[0].Children[0].Field = "id"
	assert.Equal(t, `location(id: "1"){name}`, Print(original))
	assert.Equal(t, `location(id: "2"){id}`, Print(copied))
}

func TestSignature(t *testing.T) {
	a := []*FieldSelection{field("locations", field("name"), field("id"))}
	b := []*FieldSelection{field("locations", field("name"), field("id"))}
	reordered := []*FieldSelection{field("locations", field("id"), field("name"))}
	aliased := []*FieldSelection{{Field: "locations", Alias: "all", Children: []*FieldSelection{field("name"), field("id")}}}

	assert.Equal(t, Signature(a), Signature(b))
	assert.NotEqual(t, Signature(a), Signature(reordered))
	assert.NotEqual(t, Signature(a), Signature(aliased))
}

func TestCountLeaves(t *testing.T) {
	fields := []*FieldSelection{field("locations", field("name"), field("reviews", field("comment"), field("id"))), field("__typename")}
	assert.Equal(t, 4, CountLeaves(fields))
	assert.Nil(t, FindByResponseKey(fields, "reviews"))
	assert.Equal(t, "locations", FindByResponseKey(fields, "locations").Field)
}
