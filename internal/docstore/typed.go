package docstore

import "context"

// Typed binds a collection to a Go type. Values are converted with
// encoding/json, so T's json tags decide field names; the system fields
// are only visible if T declares them.
type Typed[T any] struct {
	store *Store
	name  string
}

func NewTyped[T any](store *Store, name string) *Typed[T] {
	return &Typed[T]{store: store, name: name}
}

// Name returns the collection name.
func (t *Typed[T]) Name() string { return t.name }

// Insert stores v and refreshes it from the stored record, so generated
// fields land in v.
func (t *Typed[T]) Insert(ctx context.Context, v *T) error {
	r, err := ToRecord(v)
	if err != nil {
		return err
	}
	r, err = t.store.Insert(ctx, t.name, r)
	if err != nil {
		return err
	}
	out, err := FromRecord[T](r)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func (t *Typed[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	r, ok, err := t.store.FindByID(ctx, t.name, id)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := FromRecord[T](r)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (t *Typed[T]) FindAll(ctx context.Context) ([]T, error) {
	c, err := t.store.FindAll(ctx, t.name)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c)
}

func (t *Typed[T]) Find(ctx context.Context, query Record) ([]T, error) {
	c, err := t.store.Find(ctx, t.name, query)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c)
}

// Update overlays the JSON form of patch on the stored record. Fields
// tagged omitempty that are zero in patch leave the stored value alone.
func (t *Typed[T]) Update(ctx context.Context, id string, patch T) (T, bool, error) {
	var zero T
	p, err := ToRecord(patch)
	if err != nil {
		return zero, false, err
	}
	r, ok, err := t.store.Update(ctx, t.name, id, p)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := FromRecord[T](r)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (t *Typed[T]) Delete(ctx context.Context, id string) (bool, error) {
	return t.store.Delete(ctx, t.name, id)
}

func decodeAll[T any](c Collection) ([]T, error) {
	out := make([]T, 0, len(c))
	for _, r := range c {
		v, err := FromRecord[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
