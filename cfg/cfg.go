// Package cfg loads the client configuration: data/metadata server
// addresses, connection pool sizing, and the default distribution. Kept as
// an explicit object shared by pointer with every engine rather than a
// package-level global — see spec §9's "Global state" redesign flag.
package cfg

import (
	"os"
	"runtime"

	jsoniter "github.com/json-iterator/go"

	"github.com/julea-io/julea/cmn/cos"
)

// MetadataBackend selects how item/collection/lock records are persisted.
type MetadataBackend string

const (
	MetaLocal  MetadataBackend = "local"  // linked in-process (buntdb)
	MetaRemote MetadataBackend = "remote" // one or more metadata servers
)

// DistributionPolicy names the default distribution new items are created
// with when the caller doesn't pick one explicitly.
type DistributionPolicy string

const (
	DistRoundRobin DistributionPolicy = "round-robin"
	DistSingle     DistributionPolicy = "single"
	DistWeighted   DistributionPolicy = "weighted"
)

// Configuration is immutable once loaded; engines hold a pointer to one
// shared instance.
type Configuration struct {
	DataServers    []string           `json:"data_servers"`
	MetaServers    []string           `json:"meta_servers"`
	MaxConnections int                `json:"max_connections"` // per server; 0 => NumCPU
	BlockSize      uint64             `json:"block_size"`      // B, bytes
	Default        DistributionPolicy `json:"default_distribution"`
	MetaBackend    MetadataBackend    `json:"meta_backend"`
	MetaPath       string             `json:"meta_path"` // buntdb file, or ":memory:"

	refCount int32
}

const defaultBlockSize = 4 * 1024 * 1024 // 4 MiB

// Default returns a single-node, in-memory, round-robin-over-one-server
// configuration suitable for tests and quick starts.
func Default() *Configuration {
	return &Configuration{
		DataServers:    []string{"127.0.0.1"},
		MetaServers:    []string{"127.0.0.1"},
		MaxConnections: 0,
		BlockSize:      defaultBlockSize,
		Default:        DistRoundRobin,
		MetaBackend:    MetaLocal,
		MetaPath:       ":memory:",
	}
}

// Load reads a JSON configuration file. Missing optional fields fall back
// to Default()'s values.
func Load(path string) (*Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cos.NewErrNetwork("read config", err)
	}
	c := Default()
	if err := jsoniter.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	if len(c.DataServers) == 0 {
		return nil, cos.NewErrInvalidArgument("configuration has no data servers")
	}
	return c, nil
}

// NumConnections returns the effective per-server connection cap.
func (c *Configuration) NumConnections() int {
	if c.MaxConnections > 0 {
		return c.MaxConnections
	}
	return runtime.NumCPU()
}

func (c *Configuration) NumDataServers() int { return len(c.DataServers) }
func (c *Configuration) NumMetaServers() int { return len(c.MetaServers) }

func (c *Configuration) DataServer(i int) string { return c.DataServers[i] }
func (c *Configuration) MetaServer(i int) string { return c.MetaServers[i] }
