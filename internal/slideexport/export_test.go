package slideexport

// Exported test-only accessors for unexported fields.

// ConfigForTest returns a copy of the exporter configuration for assertions in tests.
func (exporter *Exporter) ConfigForTest() Options { return exporter.config }
