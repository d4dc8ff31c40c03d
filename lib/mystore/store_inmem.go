package mystore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

type InMemoryStore[T any] struct {
	sync.Mutex
	Items map[string]T
}

func NewInMemoryStore[T any](c context.Context) (*InMemoryStore[T], func(), error) {
	return newInMemoryStore[T](c)
}

func newInMemoryStore[T any](c context.Context) (*InMemoryStore[T], func(), error) {
	return &InMemoryStore[T]{
		Items: make(map[string]T),
	}, func() {}, nil
}

func (s *InMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	// Start transaction
	s.Lock()

	ctx := context.WithValue(c, ctxTransactionKey{}, true)

	// Within this block everything is transactional
	err := f(ctx)
	if err != nil {
		// Rollback
		s.Unlock()

		return err
	}

	// Commit
	s.Unlock()

	return nil
}

func (s *InMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
	}

	s.Items[uid] = value

	if nonTransactional {
		s.Unlock()
	}

	return nil
}

func (s *InMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
	}

	result, exists := s.Items[uid]

	if nonTransactional {
		s.Unlock()
	}

	return result, exists, nil
}

func (s *InMemoryStore[T]) Remove(c context.Context, uid string) error {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
	}

	delete(s.Items, uid)

	if nonTransactional {
		s.Unlock()
	}

	return nil
}

func (s *InMemoryStore[T]) List(c context.Context) ([]T, error) {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
	}

	result := make([]T, 0, len(s.Items))
	for _, v := range s.Items {
		result = append(result, v)
	}

	if nonTransactional {
		s.Unlock()
	}

	return result, nil
}

// Query evaluates filters in memory with the same comparison semantics as the
// datastore and postgres drivers, so dev-mode behavior matches production.
func (s *InMemoryStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	all, err := s.List(c)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(all))
	for _, item := range all {
		matches, err := matchesFilters(item, filters)
		if err != nil {
			return nil, err
		}
		if matches {
			result = append(result, item)
		}
	}

	if orderByField != "" {
		sort.Slice(result, func(i, j int) bool {
			left, leftErr := fieldValue(result[i], orderByField)
			right, rightErr := fieldValue(result[j], orderByField)
			if leftErr != nil || rightErr != nil {
				return false
			}
			ordering, err := compareValues(left, right)

			return err == nil && ordering < 0
		})
	}

	return result, nil
}

func matchesFilters[T any](item T, filters []Filter) (bool, error) {
	for _, filter := range filters {
		value, err := fieldValue(item, filter.Field)
		if err != nil {
			return false, err
		}
		ordering, err := compareValues(value, filter.Value)
		if err != nil {
			return false, err
		}

		switch filter.Compare {
		case "=":
			if ordering != 0 {
				return false, nil
			}
		case ">":
			if ordering <= 0 {
				return false, nil
			}
		case ">=":
			if ordering < 0 {
				return false, nil
			}
		case "<":
			if ordering >= 0 {
				return false, nil
			}
		case "<=":
			if ordering > 0 {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported compare operator %q", filter.Compare)
		}
	}

	return true, nil
}

func fieldValue(item any, fieldName string) (any, error) {
	value := reflect.ValueOf(item)
	if value.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot filter entity of type %T", item)
	}

	field := value.FieldByName(fieldName)
	if !field.IsValid() {
		return nil, fmt.Errorf("unknown filter field %s on %T", fieldName, item)
	}

	return field.Interface(), nil
}

func compareValues(left any, right any) (int, error) {
	switch l := left.(type) {
	case time.Time:
		r, ok := right.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare time.Time against %T", right)
		}
		switch {
		case l.Before(r):
			return -1, nil
		case l.After(r):
			return 1, nil
		}
		return 0, nil
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string against %T", right)
		}
		return strings.Compare(l, r), nil
	case bool:
		r, ok := right.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare bool against %T", right)
		}
		if l == r {
			return 0, nil
		}
		return 1, nil
	case int, int32, int64:
		li, _ := toInt64(left)
		ri, ok := toInt64(right)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T against %T", left, right)
		}
		switch {
		case li < ri:
			return -1, nil
		case li > ri:
			return 1, nil
		}
		return 0, nil
	}

	return 0, fmt.Errorf("unsupported filter value type %T", left)
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}

	return 0, false
}
