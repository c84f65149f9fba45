package loam

// DocumentMetadata is the part of a schema or content document the watcher
// reads. Every other key is left to the file loader.
type DocumentMetadata struct {
	Name string `json:"name" mapstructure:"name"`
}
