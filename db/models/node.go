package models

// PathNode is one namespace entry: the binding between a canonical path
// and the object currently live there. Nodes are tombstoned on delete,
// never removed, so an audited path can always be resolved historically.
type PathNode struct {
	Path       string `cbor:"path"`
	ParentPath string `cbor:"parent_path"`
	Hash       Hash   `cbor:"hash"`
	Revision   uint64 `cbor:"revision"`
	Tombstoned bool   `cbor:"tombstoned"`
	CreatedAt  int64  `cbor:"created_at"`
	UpdatedAt  int64  `cbor:"updated_at"`
}

// Live reports whether the node currently occupies its path.
func (n *PathNode) Live() bool {
	return !n.Tombstoned
}
