package model

import "time"

// Container describes a Docker container
type Container struct {
	ID      string
	Name    string
	Image   string
	Status  string
	State   string
	Created time.Time
}

// Running reports whether the container is currently running
func (c Container) Running() bool {
	return c.State == "running"
}
