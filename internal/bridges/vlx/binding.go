package vlx

import (
	"fmt"
	"strings"

	"github.com/nerrad567/vlx-bridge/internal/gateway"
)

// entityIDPrefix starts every generated entity id.
const entityIDPrefix = "vlx-"

// NodeBinding ties a gateway node to its bus entity. It is created once at
// startup and never changes.
type NodeBinding struct {
	Node   gateway.Node
	ID     string
	Class  DeviceClass
	Invert bool
}

var entityIDReplacer = strings.NewReplacer(
	" ", "-",
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
	"/", "-",
	"+", "-",
	"#", "-",
)

// EntityID derives the bus entity id from a node name, for example
// "Küche Süd" becomes "vlx-kueche-sued". The MQTT wildcard and level
// separator characters are replaced so the id is safe inside a topic.
func EntityID(name string) string {
	return entityIDPrefix + entityIDReplacer.Replace(strings.ToLower(name))
}

// BindNodes creates one binding per node. Inversion applies to awnings
// only, and only when invertAwning is set.
//
// It returns ErrDuplicateEntityID if two nodes map to the same id.
func BindNodes(nodes []gateway.Node, invertAwning bool, logger Logger) ([]NodeBinding, error) {
	seen := make(map[string]string, len(nodes))
	bindings := make([]NodeBinding, 0, len(nodes))

	for _, n := range nodes {
		id := EntityID(n.Name())
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q from nodes %q and %q", ErrDuplicateEntityID, id, prev, n.Name())
		}
		seen[id] = n.Name()

		bindings = append(bindings, NodeBinding{
			Node:   n,
			ID:     id,
			Class:  ResolveDeviceClass(n.Type(), logger),
			Invert: invertAwning && n.Type() == gateway.TypeAwning,
		})
	}
	return bindings, nil
}
