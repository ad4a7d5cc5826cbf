package models

// NodeID addresses a node inside a catalog arena
type NodeID int

// NoNode is the parent of the root
const NoNode NodeID = -1

// NodeKind represents the type of catalog node
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeServer
	NodeDatabase
	NodeTable
)

func (k NodeKind) String() string {
	switch k {
	case NodeRoot:
		return "root"
	case NodeServer:
		return "server"
	case NodeDatabase:
		return "database"
	case NodeTable:
		return "table"
	default:
		return "unknown"
	}
}

// CatalogNode is one entry of the catalog tree.
// Parent is a back-reference only; the arena owns every node.
type CatalogNode struct {
	ID        NodeID
	Kind      NodeKind
	Name      string
	Parent    NodeID
	Children  []NodeID
	SizeLabel string
	Loaded    bool
	Removed   bool

	// Config is set on server nodes only
	Config *ConnectionConfig
}

// IsLeaf reports whether the node can never have children
func (n CatalogNode) IsLeaf() bool {
	return n.Kind == NodeTable
}
