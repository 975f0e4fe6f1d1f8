package formkit

import (
	"io/fs"

	"github.com/goliatone/go-formkit/internal/report"
)

// ReportTemplates exposes the built-in report templates so callers can copy
// or extend them and pass the result back to Report.
func ReportTemplates() fs.FS {
	return report.TemplatesFS()
}
