package memory

import (
	"errors"
	"sync"
)

// FailBeforeKeyspaceSet configures the keyspace with the given name to return
// an error on the next call to Set() with a key/value pair that satisifies the
// given predicate function.
//
// The error is returned before the set is actually performed.
func FailBeforeKeyspaceSet(
	s *KeyValueStore,
	name string,
	pred func(k, v []byte) bool,
) {
	state := s.state(name)

	state.Lock()
	defer state.Unlock()

	state.BeforeSet = failSetOnce(pred)
}

// FailAfterKeyspaceSet configures the keyspace with the given name to return an
// error on the next call to Set() with a key/value pair that satisifies the
// given predicate function.
//
// The error is returned after the set is actually performed.
func FailAfterKeyspaceSet(
	s *KeyValueStore,
	name string,
	pred func(k, v []byte) bool,
) {
	state := s.state(name)

	state.Lock()
	defer state.Unlock()

	state.AfterSet = failSetOnce(pred)
}

// FailKeyspaceRange configures the keyspace with the given name to return an
// error from the next n calls to Range().
func FailKeyspaceRange(
	s *KeyValueStore,
	name string,
	n int,
) {
	state := s.state(name)

	state.Lock()
	defer state.Unlock()

	var m sync.Mutex
	state.BeforeRange = func() error {
		m.Lock()
		defer m.Unlock()

		if n <= 0 {
			return nil
		}
		n--

		return errors.New("<error>")
	}
}

func failSetOnce(pred func(k, v []byte) bool) func(k, v []byte) error {
	var once sync.Once

	return func(k, v []byte) (err error) {
		if pred(k, v) {
			once.Do(func() {
				err = errors.New("<error>")
			})
		}

		return err
	}
}
