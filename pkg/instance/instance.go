package instance

import "os"

// GetID identifies this worker process in logs and lock ownership. It
// prefers the explicit WORKER_ID, then the hostname (the pod name under
// Kubernetes), then a fixed fallback.
func GetID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
