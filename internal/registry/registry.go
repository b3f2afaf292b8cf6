package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pollwise/acdash/internal/model"
)

// ErrUnknownConstituency is returned for AC ids outside the registered set.
// Callers must fail fast on it; it never creates a new partition.
var ErrUnknownConstituency = errors.New("unknown constituency")

// Shard is a physical shard database holding one schema per constituency.
type Shard struct {
	Name string `yaml:"name"`
	DSN  string `yaml:"dsn"`
}

type file struct {
	Shards         []Shard              `yaml:"shards"`
	Constituencies []model.Constituency `yaml:"constituencies"`
}

// Registry holds the deploy-time-fixed set of constituencies and the
// shard databases they are placed on. Immutable after Load.
type Registry struct {
	byID    map[int]model.Constituency
	ordered []model.Constituency
	shards  map[string]Shard
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	return New(f.Shards, f.Constituencies)
}

// New builds a registry from an already-parsed shard and constituency set.
func New(shards []Shard, constituencies []model.Constituency) (*Registry, error) {
	r := &Registry{
		byID:   make(map[int]model.Constituency, len(constituencies)),
		shards: make(map[string]Shard, len(shards)),
	}

	for _, s := range shards {
		if s.Name == "" || s.DSN == "" {
			return nil, fmt.Errorf("shard %q: name and dsn are required", s.Name)
		}
		if _, ok := r.shards[s.Name]; ok {
			return nil, fmt.Errorf("duplicate shard %q", s.Name)
		}
		r.shards[s.Name] = s
	}

	for _, ac := range constituencies {
		if ac.ID <= 0 {
			return nil, fmt.Errorf("constituency %q: id must be positive", ac.Name)
		}
		if _, ok := r.byID[ac.ID]; ok {
			return nil, fmt.Errorf("duplicate constituency id %d", ac.ID)
		}
		if _, ok := r.shards[ac.Shard]; !ok {
			return nil, fmt.Errorf("constituency %d references unknown shard %q", ac.ID, ac.Shard)
		}
		r.byID[ac.ID] = ac
		r.ordered = append(r.ordered, ac)
	}

	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].ID < r.ordered[j].ID })
	return r, nil
}

// Get returns the constituency for the given AC id.
func (r *Registry) Get(acID int) (model.Constituency, error) {
	ac, ok := r.byID[acID]
	if !ok {
		return model.Constituency{}, fmt.Errorf("constituency %d: %w", acID, ErrUnknownConstituency)
	}
	return ac, nil
}

// All returns every registered constituency in ascending id order.
func (r *Registry) All() []model.Constituency {
	out := make([]model.Constituency, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ShardFor returns the shard database the given constituency is placed on.
func (r *Registry) ShardFor(acID int) (Shard, error) {
	ac, err := r.Get(acID)
	if err != nil {
		return Shard{}, err
	}
	return r.shards[ac.Shard], nil
}

// Len returns the number of registered constituencies.
func (r *Registry) Len() int {
	return len(r.ordered)
}
