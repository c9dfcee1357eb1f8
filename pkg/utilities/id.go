package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out snowflake IDs used as primary keys for new rows.
// One generator must be shared per process: two nodes with the same node ID
// would restart the sequence and can collide within a millisecond.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator builds a generator for the provided node ID (0-1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: node}, nil
}

// IDGeneratorFromEnv reads the node ID from SNOWFLAKE_NODE, defaulting to
// node 1 when unset or unparsable.
func IDGeneratorFromEnv() (*IDGenerator, error) {
	nodeID, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64)
	if err != nil {
		nodeID = 1
	}
	return NewIDGenerator(nodeID)
}

// Next returns a new unique ID.
func (g *IDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}
