package deploy

const namePrefix = "deploy-"

// ContainerName returns the deterministic container name for a fingerprint.
func ContainerName(fingerprint string) string {
	return namePrefix + fingerprint
}

// ImageName returns the deterministic image tag for a fingerprint.
func ImageName(fingerprint string) string {
	return namePrefix + fingerprint
}
