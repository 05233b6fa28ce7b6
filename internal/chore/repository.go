package chore

import "context"

// DefinitionRepository loads and persists chore definitions.
type DefinitionRepository interface {
	Get(ctx context.Context, id string) (*Definition, error)
	List(ctx context.Context) ([]*Definition, error)
	Put(ctx context.Context, def *Definition) error
	Delete(ctx context.Context, id string) error
}

// InstanceRepository persists live instance state. Put is called after
// every mutating workflow and after every scanner pass that produced
// changes; implementations own retry behavior.
type InstanceRepository interface {
	Get(ctx context.Context, choreID, assigneeID string) (*Instance, error)
	ListByChore(ctx context.Context, choreID string) ([]*Instance, error)
	List(ctx context.Context) ([]*Instance, error)
	Put(ctx context.Context, instances ...*Instance) error
	DeleteByChore(ctx context.Context, choreID string) error
}
