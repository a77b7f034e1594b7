package node

import "context"

// Long running light client node
type Node interface {
	// Blocks until the node stops. Stops on context cancellation or Handle.Shutdown.
	Run(ctx context.Context) error

	// Was Run already called
	IsRunning() bool
}

// Creates a node and the handle used to talk to it
type Factory func(config *Config) (Node, *Handle, error)
