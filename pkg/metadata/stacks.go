package metadata

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/model"
)

// CreateStack records a new stack.
//
// When from is not empty, the registrations of that stack are copied onto the new one,
// in the same transaction. A new default stack may only be created when no default
// stack exists yet.
func (s *Store) CreateStack(_ context.Context, stack model.Stack, from string) error {
	if strings.TrimSpace(stack.Name) == "" {
		return status.ErrNameRequired.WrapMessage("stack name")
	}
	if stack.CreatedAt.IsZero() {
		stack.CreatedAt = time.Now().UTC()
	}
	stack.Properties = normalizeProperties(stack.Properties)

	return s.update(func(txn *badger.Txn) error {
		found, err := exists(txn, stackKey(stack.Name))
		if err != nil {
			return err
		}
		if found {
			return status.ErrExists.WrapMessage("stack %q", stack.Name)
		}

		if stack.IsDefault {
			defaults, err := defaultStacks(txn)
			if err != nil {
				return err
			}
			if len(defaults) > 0 {
				return status.ErrDefaultStack.WrapMessage("stack %q is already the default", defaults[0].Name)
			}
		}

		if from != "" {
			if err = copyRegistrations(txn, from, stack.Name); err != nil {
				return err
			}
		}

		return setJSON(txn, stackKey(stack.Name), stack)
	})
}

// GetStack retrieves a stack by its (normalized) name
func (s *Store) GetStack(_ context.Context, name string) (model.Stack, error) {
	var stack model.Stack
	err := s.view(func(txn *badger.Txn) error {
		return getStack(txn, name, &stack)
	})
	return stack, err
}

// ListStacks returns all stacks, ordered by name
func (s *Store) ListStacks(_ context.Context) ([]model.Stack, error) {
	var result []model.Stack
	err := s.view(func(txn *badger.Txn) error {
		var err error
		result, err = listStacks(txn)
		return err
	})
	return result, err
}

// DefaultStacks returns all the stacks flagged as default.
//
// In a consistent repository, there is exactly one.
func (s *Store) DefaultStacks(_ context.Context) ([]model.Stack, error) {
	var result []model.Stack
	err := s.view(func(txn *badger.Txn) error {
		var err error
		result, err = defaultStacks(txn)
		return err
	})
	return result, err
}

// SetDefaultStack flags a stack as the default one and clears the flag on all others,
// in one transaction.
func (s *Store) SetDefaultStack(_ context.Context, name string) error {
	return s.update(func(txn *badger.Txn) error {
		var target model.Stack
		if err := getStack(txn, name, &target); err != nil {
			return err
		}

		stacks, err := listStacks(txn)
		if err != nil {
			return err
		}
		for _, stack := range stacks {
			isDefault := stack.Name == name
			if stack.IsDefault == isDefault {
				continue
			}
			stack.IsDefault = isDefault
			if err := setJSON(txn, stackKey(stack.Name), stack); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetStackProperties merges properties into a stack. An empty value removes the property.
func (s *Store) SetStackProperties(_ context.Context, name string, props map[string]string) (model.Stack, error) {
	var stack model.Stack
	err := s.update(func(txn *badger.Txn) error {
		if err := getStack(txn, name, &stack); err != nil {
			return err
		}
		if stack.Properties == nil {
			stack.Properties = make(map[string]string, len(props))
		}
		for k, v := range props {
			key := model.NormalizePropertyKey(k)
			if v == "" {
				delete(stack.Properties, key)
				continue
			}
			stack.Properties[key] = v
		}
		return setJSON(txn, stackKey(name), stack)
	})
	if err != nil {
		return model.Stack{}, err
	}
	return stack, nil
}

// DeleteStack removes a stack and its registrations. The default stack cannot be deleted.
func (s *Store) DeleteStack(_ context.Context, name string) error {
	return s.update(func(txn *badger.Txn) error {
		var stack model.Stack
		if err := getStack(txn, name, &stack); err != nil {
			return err
		}
		if stack.IsDefault {
			return status.ErrDefaultStack.WrapMessage("cannot delete default stack %q", name)
		}
		for _, key := range scanKeys(txn, regStackPrefix(name)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete(stackKey(name))
	})
}

func getStack(txn *badger.Txn, name string, stack *model.Stack) error {
	if err := getJSON(txn, stackKey(name), stack); err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return status.ErrNotFound.WrapMessage("stack %q", name)
		}
		return err
	}
	return nil
}

func listStacks(txn *badger.Txn) ([]model.Stack, error) {
	var result []model.Stack
	err := scan(txn, stackPref[:], func(key, value []byte) error {
		var stack model.Stack
		if err := decode(key, value, &stack); err != nil {
			return err
		}
		result = append(result, stack)
		return nil
	})
	return result, err
}

func defaultStacks(txn *badger.Txn) ([]model.Stack, error) {
	stacks, err := listStacks(txn)
	if err != nil {
		return nil, err
	}
	var defaults []model.Stack
	for _, stack := range stacks {
		if stack.IsDefault {
			defaults = append(defaults, stack)
		}
	}
	return defaults, nil
}

func normalizeProperties(props map[string]string) map[string]string {
	if len(props) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(props))
	for k, v := range props {
		if v == "" {
			continue
		}
		normalized[model.NormalizePropertyKey(k)] = v
	}
	return normalized
}
