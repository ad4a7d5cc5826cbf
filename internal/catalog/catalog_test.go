package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/testutil"
)

var statusColumns = []string{"Name", "Engine", "Rows", "Data_length", "Index_length"}

// newTestCatalog serves SHOW DATABASES on server connections and
// SHOW TABLE STATUS on the "shop" database
func newTestCatalog(t *testing.T) (*Catalog, *testutil.MockServer) {
	t.Helper()
	srv := testutil.NewMockServer(t)
	srv.Setup = func(dsn string, mock sqlmock.Sqlmock) {
		switch {
		case strings.Contains(dsn, "/shop?"):
			mock.ExpectQuery("SHOW TABLE STATUS").
				WillReturnRows(testutil.Rows(statusColumns,
					[]any{"users", "InnoDB", "10", "1048576", "0"},
					[]any{"orders", "InnoDB", "3", "409600", "102400"},
				))
		case strings.Contains(dsn, "/?"):
			mock.ExpectQuery("SHOW DATABASES").
				WillReturnRows(testutil.Rows([]string{"Database"},
					[]any{"information_schema"},
					[]any{"shop"},
					[]any{"blog"},
				))
		}
	}
	m := connection.NewManager(srv.Open, nil)
	return New(m, nil), srv
}

func names(t *testing.T, c *Catalog, ids []models.NodeID) []string {
	t.Helper()
	var out []string
	for _, id := range ids {
		n, err := c.Node(id)
		require.NoError(t, err)
		out = append(out, n.Name)
	}
	return out
}

func TestCatalog_AddServer(t *testing.T) {
	c, srv := newTestCatalog(t)
	cfg := testutil.Config("alpha")

	id, added := c.AddServer(context.Background(), cfg)
	require.True(t, added)
	assert.Equal(t, uint64(1), c.Generation())

	n, err := c.Node(id)
	require.NoError(t, err)
	assert.Equal(t, models.NodeServer, n.Kind)
	assert.Equal(t, "alpha", n.Name)
	assert.Equal(t, []string{"information_schema", "shop", "blog"}, names(t, c, n.Children))
	assert.True(t, c.CanExpand(id))

	select {
	case <-c.Changes():
	default:
		t.Fatal("expected a change notification")
	}

	// Same UUID again: nothing changes
	again, added := c.AddServer(context.Background(), cfg)
	assert.False(t, added)
	assert.Equal(t, id, again)
	assert.Len(t, c.Servers(), 1)
	assert.Equal(t, uint64(1), c.Generation())
	assert.Equal(t, 1, srv.Opens())
}

func TestCatalog_AddServerFailure(t *testing.T) {
	c, srv := newTestCatalog(t)
	srv.Fail = func(string) error { return errors.New("access denied") }

	id, added := c.AddServer(context.Background(), testutil.Config("alpha"))

	assert.False(t, added)
	assert.Equal(t, models.NoNode, id)
	assert.Empty(t, c.Servers())
	assert.Equal(t, uint64(0), c.Generation())
}

func TestCatalog_ExpandDatabase(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestCatalog(t)
	sid, _ := c.AddServer(ctx, testutil.Config("alpha"))
	dbID, ok := c.Find("uuid-alpha", "shop", "")
	require.True(t, ok)
	assert.True(t, c.CanExpand(dbID))

	require.NoError(t, c.Expand(ctx, dbID))

	n, err := c.Node(dbID)
	require.NoError(t, err)
	assert.True(t, n.Loaded)
	assert.Equal(t, "1 Mb", n.SizeLabel)
	assert.Equal(t, []string{"users", "orders"}, names(t, c, n.Children))
	assert.False(t, c.CanExpand(dbID))

	users, err := c.Node(n.Children[0])
	require.NoError(t, err)
	assert.Equal(t, "1 Mb", users.SizeLabel)
	orders, err := c.Node(n.Children[1])
	require.NoError(t, err)
	assert.Equal(t, "500 Kb", orders.SizeLabel)
	assert.False(t, c.CanExpand(orders.ID))

	// The live connection now points at the expanded database
	m := c.manager
	assert.Equal(t, "shop", m.DatabaseName())

	// Second expansion is a no-op without queries
	gen := c.Generation()
	require.NoError(t, c.Expand(ctx, dbID))
	n2, err := c.Node(dbID)
	require.NoError(t, err)
	assert.Equal(t, n.Children, n2.Children)
	assert.Equal(t, gen, c.Generation())
	assert.Equal(t, 2, srv.Opens())
	assert.NoError(t, srv.ExpectationsMet())

	tableID, ok := c.Find("uuid-alpha", "shop", "orders")
	require.True(t, ok)
	got, err := c.DatabaseOf(tableID)
	require.NoError(t, err)
	assert.Equal(t, dbID, got)
	got, err = c.ServerOf(tableID)
	require.NoError(t, err)
	assert.Equal(t, sid, got)
}

func TestCatalog_ExpandFailure(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestCatalog(t)
	c.AddServer(ctx, testutil.Config("alpha"))
	srv.Fail = testutil.FailDatabase("blog", errors.New("access denied for blog"))

	dbID, ok := c.Find("uuid-alpha", "blog", "")
	require.True(t, ok)

	err := c.Expand(ctx, dbID)
	var connErr *models.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, c.CanExpand(dbID))
}

func TestCatalog_Filter(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCatalog(t)
	sid, _ := c.AddServer(ctx, testutil.Config("alpha"))
	dbID, _ := c.Find("uuid-alpha", "shop", "")
	require.NoError(t, c.Expand(ctx, dbID))
	gen := c.Generation()

	c.SetFilter(models.NodeDatabase, "SH")
	assert.Equal(t, []string{"shop"}, names(t, c, c.VisibleChildren(sid)))

	c.SetFilter(models.NodeTable, "ORD")
	assert.Equal(t, []string{"orders"}, names(t, c, c.VisibleChildren(dbID)))

	// Filters only hide nodes
	children, err := c.Children(dbID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	c.SetFilter(models.NodeDatabase, "")
	assert.Len(t, c.VisibleChildren(sid), 3)

	// Filtering is not a catalog change
	assert.Equal(t, gen, c.Generation())
	select {
	case <-c.Changes():
		// the Expand above may still be pending
	default:
	}
	c.SetFilter(models.NodeTable, "x")
	select {
	case <-c.Changes():
		t.Fatal("filter change signalled")
	default:
	}
}

func TestCatalog_TableNames(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCatalog(t)
	c.AddServer(ctx, testutil.Config("alpha"))

	_, ok := c.TableNames("uuid-alpha", "shop")
	assert.False(t, ok)

	dbID, _ := c.Find("uuid-alpha", "shop", "")
	require.NoError(t, c.Expand(ctx, dbID))
	c.SetFilter(models.NodeTable, "zzz")

	tables, ok := c.TableNames("uuid-alpha", "shop")
	require.True(t, ok)
	assert.Len(t, tables, 2)
	assert.Contains(t, tables, "orders")

	_, ok = c.TableNames("uuid-alpha", "nope")
	assert.False(t, ok)
}

func TestCatalog_RefreshAndRemove(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewMockServer(t)
	opens := 0
	srv.Setup = func(dsn string, mock sqlmock.Sqlmock) {
		opens++
		switch opens {
		case 1:
			mock.ExpectQuery("SHOW DATABASES").
				WillReturnRows(testutil.Rows([]string{"Database"}, []any{"shop"}, []any{"blog"}))
			mock.ExpectQuery("SHOW DATABASES").
				WillReturnRows(testutil.Rows([]string{"Database"}, []any{"shop"}, []any{"wiki"}))
		}
	}
	c := New(connection.NewManager(srv.Open, nil), nil)

	sid, _ := c.AddServer(ctx, testutil.Config("alpha"))
	shopID, _ := c.Find("uuid-alpha", "shop", "")
	blogID, _ := c.Find("uuid-alpha", "blog", "")

	require.NoError(t, c.Refresh(ctx, sid))

	n, err := c.Node(sid)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "wiki"}, names(t, c, n.Children))
	assert.Equal(t, shopID, n.Children[0])

	_, err = c.Node(blogID)
	var nf *models.NotFoundError
	assert.ErrorAs(t, err, &nf)

	require.NoError(t, c.RemoveServer("uuid-alpha"))
	assert.Empty(t, c.Servers())
	_, err = c.Node(shopID)
	assert.ErrorAs(t, err, &nf)
	assert.False(t, c.manager.IsOpen())

	assert.Error(t, c.RemoveServer("uuid-alpha"))
}

func TestCatalog_NodeOutOfRange(t *testing.T) {
	c, _ := newTestCatalog(t)

	_, err := c.Node(42)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.False(t, c.CanExpand(42))
	assert.NoError(t, c.Expand(context.Background(), RootID))
}
