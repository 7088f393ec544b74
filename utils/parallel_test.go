package utils

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"
)

func TestRunInParallel(t *testing.T) {
	waitForCancel := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	err := RunInParallel(context.Background(), []SimpleFunc{waitForCancel, waitForCancel, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad")

	err = RunInParallel(context.Background(), []SimpleFunc{func(ctx context.Context) error { return nil }})
	test.That(t, err, test.ShouldBeNil)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}
	err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGroupWorkParallel(t *testing.T) {
	t.Run("covers every item once", func(t *testing.T) {
		for _, workers := range []int{0, 1, 3, 7, 100} {
			seen := make([]int, 23)
			var mu sync.Mutex
			err := GroupWorkParallel(context.Background(), len(seen), workers, func(ctx context.Context, groupNum, from, to int) error {
				mu.Lock()
				defer mu.Unlock()
				for i := from; i < to; i++ {
					seen[i]++
				}
				return nil
			})
			test.That(t, err, test.ShouldBeNil)
			for _, s := range seen {
				test.That(t, s, test.ShouldEqual, 1)
			}
		}
	})

	t.Run("combines errors", func(t *testing.T) {
		err := GroupWorkParallel(context.Background(), 4, 4, func(ctx context.Context, groupNum, from, to int) error {
			if groupNum%2 == 0 {
				return errors.New("even group")
			}
			return nil
		})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 2)
	})

	t.Run("recovers panics", func(t *testing.T) {
		err := GroupWorkParallel(context.Background(), 2, 2, func(ctx context.Context, groupNum, from, to int) error {
			panic("boom")
		})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("nothing to do", func(t *testing.T) {
		called := false
		err := GroupWorkParallel(context.Background(), 0, 4, func(ctx context.Context, groupNum, from, to int) error {
			called = true
			return nil
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, called, test.ShouldBeFalse)
	})
}
