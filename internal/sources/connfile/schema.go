package connfile

// RegistryFile is the top-level structure of the registry file the
// connection-tracking backend writes. Entries are kept loosely typed: their
// shape is checked by domain.ParseConnection, not by the YAML decoder.
type RegistryFile struct {
	Connections []map[string]interface{} `yaml:"connections"`
}
