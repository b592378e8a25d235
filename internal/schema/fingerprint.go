package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/insight-cli/internal/model"
)

// Fingerprint hashes the sorted table/column signatures of a schema
// snapshot. Two introspections of the same schema always produce the same
// fingerprint regardless of table or column ordering.
func Fingerprint(tables []model.Table) string {
	sigs := make([]string, 0, len(tables))
	for _, t := range tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, fmt.Sprintf("%s:%s:%t:%t:%t:%s",
				c.Name, c.DeclaredType, c.Nullable, c.IsPrimaryKey, c.IsForeignKey, c.References))
		}
		sort.Strings(cols)
		sigs = append(sigs, t.Name+"("+strings.Join(cols, ",")+")")
	}
	sort.Strings(sigs)

	sum := sha256.Sum256([]byte(strings.Join(sigs, ";")))
	return hex.EncodeToString(sum[:])
}
