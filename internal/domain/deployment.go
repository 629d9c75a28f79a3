package domain

import "time"

// Deployment summarizes a completed deploy operation.
type Deployment struct {
	ID             string    `json:"deployment_id"`
	OwnerID        string    `json:"owner_id"`
	Fingerprint    string    `json:"fingerprint"`
	ContainerName  string    `json:"container_name"`
	ImageName      string    `json:"image_name"`
	HostPort       int       `json:"host_port"`
	RoutePublished bool      `json:"route_published"`
	CreatedAt      time.Time `json:"created_at"`
}
