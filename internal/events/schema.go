package events

// SchemaReload is emitted after the manifest changed and the schema was
// rebuilt. Err is set when the rebuild failed and the previous schema stays
// in service.
type SchemaReload struct {
	Source     string
	Procedures int
	Err        error
}
