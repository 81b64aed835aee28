package synthset

import (
	"bytes"
	"sync"
	"testing"

	"github.com/swdee/go-synthset/errors"
)

func TestPoolSeedsEachSlot(t *testing.T) {

	bg := grayBG(t, 320, 240)
	defer bg.Close()

	fg := redFG(t, 40, 40)
	defer fg.Close()

	table := testTable(t)

	p, err := NewPool(2, table, Options{Seed: 10, Logger: quiet()})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	if p.Size() != 2 {
		t.Fatalf("size = %d, want 2", p.Size())
	}

	// slots come out in the order they were seeded
	for i, c := range []*Composer{p.Get(), p.Get()} {

		ref := NewComposer(table, Options{Seed: 10 + uint64(i), Logger: quiet()})

		got, err := c.Compose(bg, fg, "bench")
		if err != nil {
			t.Fatalf("slot %d Compose: %v", i, err)
		}

		want, err := ref.Compose(bg, fg, "bench")
		if err != nil {
			t.Fatalf("reference %d Compose: %v", i, err)
		}

		if got.Placement != want.Placement || !bytes.Equal(got.Composite.ToBytes(), want.Composite.ToBytes()) {
			t.Errorf("slot %d does not match a composer seeded %d", i, 10+i)
		}

		got.Close()
		want.Close()
		p.Return(c)
	}
}

func TestPoolConcurrentUse(t *testing.T) {

	bg := grayBG(t, 320, 240)
	defer bg.Close()

	fg := redFG(t, 40, 40)
	defer fg.Close()

	p, err := NewPool(3, testTable(t), Options{Seed: 1, Logger: quiet()})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 12)

	for i := 0; i < 12; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			c := p.Get()
			defer p.Return(c)

			res, err := c.Compose(bg, fg, "traffic cone")
			if err != nil {
				errs <- err
				return
			}
			res.Close()
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Compose: %v", err)
	}
}

func TestPoolInvalidSize(t *testing.T) {

	_, err := NewPool(0, nil, Options{})

	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want %s", err, errors.ErrCodeInvalidConfig)
	}
}

func TestPoolClose(t *testing.T) {

	p, err := NewPool(1, nil, Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	c := p.Get()
	p.Close()
	p.Close()

	// returning after close must not block or panic
	p.Return(c)
}
