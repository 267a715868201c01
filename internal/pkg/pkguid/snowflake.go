package pkguid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// epochMillis is Mon Dec 01 2025 00:00:00.000 WIB. Ingest IDs are
// milliseconds since this instant in their top bits.
const epochMillis int64 = 1764522000000

const maxNode = 1<<10 - 1

var (
	ErrNodeOutOfRange = errors.New("snowflake node must be within 0..1023")

	epochOnce sync.Once
)

// Snowflake generates numeric IDs using the Snowflake algorithm.
type Snowflake struct {
	node *snowflake.Node
}

type SnowflakeOption func(*snowflakeConfig)

type snowflakeConfig struct {
	node    int64
	hasNode bool
}

// WithNode pins the node ID. Replicas writing into the same upload directory
// need distinct nodes; without it a random node is picked.
func WithNode(node int64) SnowflakeOption {
	return func(c *snowflakeConfig) {
		c.node = node
		c.hasNode = true
	}
}

func generateRandomNodeID() (int64, error) {
	var nodeID int64
	if err := binary.Read(rand.Reader, binary.BigEndian, &nodeID); err != nil {
		return 0, err
	}

	return nodeID & maxNode, nil
}

func NewSnowflake(opts ...SnowflakeOption) (*Snowflake, error) {
	var cfg snowflakeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	nodeID := cfg.node
	if !cfg.hasNode {
		var err error
		if nodeID, err = generateRandomNodeID(); err != nil {
			return nil, err
		}
	}
	if nodeID < 0 || nodeID > maxNode {
		return nil, ErrNodeOutOfRange
	}

	epochOnce.Do(func() {
		snowflake.Epoch = epochMillis
	})

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

// Time returns the instant encoded in an ID produced by Generate.
func (s *Snowflake) Time(id int64) time.Time {
	return time.UnixMilli(snowflake.ParseInt64(id).Time())
}

// Node returns the node ID encoded in id.
func (s *Snowflake) Node(id int64) int64 {
	return snowflake.ParseInt64(id).Node()
}
