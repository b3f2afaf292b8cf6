package request

// InvalidateCache drops cached dashboard entries. Scope "tenant" requires
// ac_id; scope "all" ignores it.
type InvalidateCache struct {
	Scope string `json:"scope" validate:"required,oneof=tenant all"`
	ACID  int    `json:"ac_id" validate:"required_if=Scope tenant"`
}
