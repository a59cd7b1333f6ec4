// Package id generates run identifiers
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the snowflake node. Only the first call has any effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered unique id. Init must have succeeded.
func New() int64 {
	return node.Generate().Int64()
}

// NewString returns New as a base-10 string
func NewString() string {
	return node.Generate().String()
}
