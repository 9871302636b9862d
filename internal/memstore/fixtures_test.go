package memstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantien133/active-aggregate/internal/ir"
)

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
orders:
  - {status: paid, total: 40, customer: {email: a@example.com}}
  - {status: open, total: 12.5, tags: [new, web]}
users:
  - {name: ann}
`), 0o644))

	fx, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, fx["orders"], 2)

	first := fx["orders"][0]
	assert.Equal(t, "paid", first["status"])
	assert.Equal(t, 40, first["total"])
	v, ok := first.Lookup("customer.email")
	require.True(t, ok)
	assert.Equal(t, "a@example.com", v)
	assert.Equal(t, []any{"new", "web"}, fx["orders"][1]["tags"])

	colls := fx.Collections()
	require.Len(t, colls, 2)
	assert.Equal(t, "orders", colls[0].Name())
	assert.Equal(t, "users", colls[1].Name())
	assert.Equal(t, 2, colls[0].Len())
}

func TestParseFixturesErrors(t *testing.T) {
	_, err := ParseFixtures([]byte("orders: {not: a list}"))
	assert.Error(t, err)

	_, err = LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read fixtures")
}

func TestFixturesDocsAreDocs(t *testing.T) {
	fx, err := ParseFixtures([]byte("c:\n  - {a: 1}\n"))
	require.NoError(t, err)
	assert.IsType(t, ir.Doc{}, fx["c"][0])
}
