package config

import (
	"os"
	"sync"
)

var (
	inDockerOnce sync.Once
	inDocker     bool
)

// IsRunningInDocker reports whether the process runs inside a Docker
// container, detected by /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDocker = err == nil
	})
	return inDocker
}

// ResolveHostForDocker rewrites loopback hosts to host.docker.internal when
// running in Docker, so Postgres and Redis on the host stay reachable.
// Empty and non-loopback hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	if host == "" || !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
