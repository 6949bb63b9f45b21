package zdc_test

import (
	"errors"
	"testing"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/testutil"
)

func TestSchemaViolations(t *testing.T) {
	cases := []struct {
		name    string
		content map[string]interface{}
		meta    map[string]interface{}
	}{
		{
			name:    "missing containerType.name",
			content: map[string]interface{}{},
		},
		{
			name: "whitespace in containerType.name",
			content: map[string]interface{}{
				"containerType": map[string]interface{}{"name": "my type"},
			},
		},
		{
			name: "containerType.id without version",
			content: map[string]interface{}{
				"containerType": map[string]interface{}{"name": "demo", "id": "doi:10/xyz"},
			},
		},
		{
			name: "software id without idType",
			content: map[string]interface{}{
				"containerType": map[string]interface{}{"name": "demo"},
				"usedSoftware": []interface{}{
					map[string]interface{}{"name": "sim", "version": "1.0", "id": "xyz"},
				},
			},
		},
		{
			name: "static without hash",
			content: map[string]interface{}{
				"containerType": map[string]interface{}{"name": "demo"},
				"static":        true,
			},
		},
		{
			name: "missing title",
			content: map[string]interface{}{
				"containerType": map[string]interface{}{"name": "demo"},
			},
			meta: map[string]interface{}{"author": "A", "email": "a@x"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := testutil.Items()
			items[zdc.ContentName] = tc.content
			if tc.meta != nil {
				items[zdc.MetaName] = tc.meta
			}
			_, err := zdc.New(items)
			if !errors.Is(err, zdc.ErrSchemaViolation) {
				t.Errorf("got %v, want ErrSchemaViolation", err)
			}
		})
	}
}

func TestContentMutators(t *testing.T) {
	c := testutil.Build(t)

	if err := c.SetContainerType(zdc.ContainerType{Name: "demo", ID: "doi:10/xyz", Version: "2"}); err != nil {
		t.Fatal(err)
	}
	if err := c.SetContainerType(zdc.ContainerType{Name: "bad name"}); !errors.Is(err, zdc.ErrSchemaViolation) {
		t.Errorf("got %v, want ErrSchemaViolation", err)
	}
	if got := c.Content().ContainerType.ID; got != "doi:10/xyz" {
		t.Errorf("rejected mutation leaked: id = %q", got)
	}

	if err := c.AddSoftware(zdc.Software{Name: "sim", Version: "1.2"}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddSoftware(zdc.Software{Name: "sim"}); !errors.Is(err, zdc.ErrSchemaViolation) {
		t.Errorf("got %v, want ErrSchemaViolation", err)
	}
	if got := len(c.Content().UsedSoftware); got != 1 {
		t.Errorf("got %d software entries, want 1", got)
	}

	if err := c.SetReplaces("not-a-uuid"); !errors.Is(err, zdc.ErrSchemaViolation) {
		t.Errorf("got %v, want ErrSchemaViolation", err)
	}
}

func TestModifiedMonotone(t *testing.T) {
	c := testutil.Build(t)
	before := c.Content().Modified

	if err := c.Set("log/a.txt", "x"); err != nil {
		t.Fatal(err)
	}
	after := c.Content().Modified
	if after.Before(before.Time) {
		t.Errorf("modified went backward: %s -> %s", before, after)
	}
}
