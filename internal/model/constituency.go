package model

// Constituency is one tenant: an assembly constituency whose voter records
// live in their own schema on one of the physical shard databases. The set
// of constituencies is fixed at deploy time.
type Constituency struct {
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Shard string `json:"shard" yaml:"shard"`
}
