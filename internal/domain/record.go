package domain

// Record describes one published container in the port registry. Records
// are keyed by fingerprint and stored wholesale as a JSON document, so
// field names are part of the on-disk format.
type Record struct {
	Fingerprint   string `json:"fingerprint"`
	ContainerName string `json:"container_name"`
	ContainerPort int    `json:"container_port"`
	ImageName     string `json:"image_name"`
}
