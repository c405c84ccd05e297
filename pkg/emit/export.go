package emit

import (
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/esmigrate/pkg/unit"
)

// wrapDefaultExport surrounds body with the statements exporting the unit's namespace.
// Files with several namespaces export the one named after the file; when none
// matches, body is returned unchanged.
func wrapDefaultExport(u unit.Unit, body string) string {
	prefix, suffix := exportParts(u)
	if prefix == "" && suffix == "" {
		return body
	}

	return prefix + "\n" + body + "\n" + suffix
}

func exportParts(u unit.Unit) (prefix, suffix string) {
	if len(u.Provided) == 1 {
		ns := u.Provided[0]
		if u.IsModule {
			return "var exports = {};", ns + " = exports;\nexport default exports"
		}

		return "", "export default " + ns
	}

	base := filepath.Base(u.ID)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	for _, ns := range u.Provided {
		if strings.ToLower(lastSegment(ns)) == stem {
			return "", "export default " + ns
		}
	}

	return "", ""
}

func lastSegment(ns string) string {
	if idx := strings.LastIndexByte(ns, '.'); idx >= 0 {
		return ns[idx+1:]
	}

	return ns
}
