// Package repositoryimpl provides YAML-backed repositories over the storage
// abstraction, so the data directory can live locally or in S3.
package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/choreguild/choreguild/internal/chore"
	"github.com/choreguild/choreguild/pkg/storage"
)

const (
	definitionsPath = "chores.yaml"
	instancesPath   = "instances.yaml"
)

// DefinitionYAMLRepository persists chore definitions as one YAML document.
type DefinitionYAMLRepository struct {
	store storage.Storage
	path  string
}

func NewDefinitionYAMLRepository(store storage.Storage) *DefinitionYAMLRepository {
	return &DefinitionYAMLRepository{store: store, path: definitionsPath}
}

type definitionData struct {
	Chores []*chore.Definition `yaml:"chores"`
}

func (r *DefinitionYAMLRepository) load(ctx context.Context) (*definitionData, error) {
	raw, err := r.store.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &definitionData{}, nil
		}
		return nil, fmt.Errorf("failed to load chore definitions: %w", err)
	}
	var data definitionData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chore definitions: %w", err)
	}
	return &data, nil
}

func (r *DefinitionYAMLRepository) save(ctx context.Context, data *definitionData) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal chore definitions: %w", err)
	}
	if err := r.store.Write(ctx, r.path, raw); err != nil {
		return fmt.Errorf("failed to write chore definitions: %w", err)
	}
	return nil
}

func (r *DefinitionYAMLRepository) Get(ctx context.Context, id string) (*chore.Definition, error) {
	data, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, def := range data.Chores {
		if def.ID == id {
			return def, nil
		}
	}
	return nil, chore.NewNotFoundError("chore", id)
}

func (r *DefinitionYAMLRepository) List(ctx context.Context) ([]*chore.Definition, error) {
	data, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return data.Chores, nil
}

func (r *DefinitionYAMLRepository) Put(ctx context.Context, def *chore.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	data, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i, existing := range data.Chores {
		if existing.ID == def.ID {
			data.Chores[i] = def
			return r.save(ctx, data)
		}
	}
	data.Chores = append(data.Chores, def)
	return r.save(ctx, data)
}

func (r *DefinitionYAMLRepository) Delete(ctx context.Context, id string) error {
	data, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i, def := range data.Chores {
		if def.ID == id {
			data.Chores = append(data.Chores[:i], data.Chores[i+1:]...)
			return r.save(ctx, data)
		}
	}
	return chore.NewNotFoundError("chore", id)
}

// InstanceYAMLRepository persists instance state as one YAML document.
type InstanceYAMLRepository struct {
	store storage.Storage
	path  string
}

func NewInstanceYAMLRepository(store storage.Storage) *InstanceYAMLRepository {
	return &InstanceYAMLRepository{store: store, path: instancesPath}
}

type instanceData struct {
	Instances []*chore.Instance `yaml:"instances"`
}

func (r *InstanceYAMLRepository) load(ctx context.Context) (*instanceData, error) {
	raw, err := r.store.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &instanceData{}, nil
		}
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}
	var data instanceData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instances: %w", err)
	}
	return &data, nil
}

func (r *InstanceYAMLRepository) save(ctx context.Context, data *instanceData) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal instances: %w", err)
	}
	if err := r.store.Write(ctx, r.path, raw); err != nil {
		return fmt.Errorf("failed to write instances: %w", err)
	}
	return nil
}

func (r *InstanceYAMLRepository) Get(ctx context.Context, choreID, assigneeID string) (*chore.Instance, error) {
	data, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, inst := range data.Instances {
		if inst.ChoreID == choreID && inst.AssigneeID == assigneeID {
			return inst, nil
		}
	}
	return nil, chore.NewNotFoundError("instance", choreID+"/"+assigneeID)
}

func (r *InstanceYAMLRepository) ListByChore(ctx context.Context, choreID string) ([]*chore.Instance, error) {
	data, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []*chore.Instance
	for _, inst := range data.Instances {
		if inst.ChoreID == choreID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (r *InstanceYAMLRepository) List(ctx context.Context) ([]*chore.Instance, error) {
	data, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return data.Instances, nil
}

// Put upserts every given instance in a single write.
func (r *InstanceYAMLRepository) Put(ctx context.Context, instances ...*chore.Instance) error {
	if len(instances) == 0 {
		return nil
	}
	data, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		replaced := false
		for i, existing := range data.Instances {
			if existing.ChoreID == inst.ChoreID && existing.AssigneeID == inst.AssigneeID {
				data.Instances[i] = inst
				replaced = true
				break
			}
		}
		if !replaced {
			data.Instances = append(data.Instances, inst)
		}
	}
	return r.save(ctx, data)
}

func (r *InstanceYAMLRepository) DeleteByChore(ctx context.Context, choreID string) error {
	data, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := data.Instances[:0]
	for _, inst := range data.Instances {
		if inst.ChoreID != choreID {
			kept = append(kept, inst)
		}
	}
	data.Instances = kept
	return r.save(ctx, data)
}
