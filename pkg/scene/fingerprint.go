package scene

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the snapshot's content. Node order and the snapshot name
// do not affect the result.
func Fingerprint(s Snapshot) string {
	nodes := make([]Node, len(s.Nodes))
	copy(nodes, s.Nodes)
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Identity() < nodes[j].Identity()
	})

	digest := xxhash.New()
	_, _ = digest.WriteString(s.Root)
	_, _ = digest.WriteString("\x00")
	for _, node := range nodes {
		_, _ = fmt.Fprintf(digest, "%s\x1f%s\x1f%s\x1f%d\x1f", node.Key, node.ID, node.Parent, int(node.Visibility))
		if len(node.Attributes) > 0 {
			encoded, err := json.Marshal(node.Attributes)
			if err == nil {
				_, _ = digest.Write(encoded)
			}
		}
		_, _ = digest.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}
