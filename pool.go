package synthset

import (
	"sync"
	"sync/atomic"

	"github.com/swdee/go-synthset/errors"
	"github.com/swdee/go-synthset/scale"
)

// Pool hands out Composers to concurrent workers.  Each Composer has its own
// random source seeded from Options.Seed plus its slot number so a run is
// reproducible for a given seed and pool size.
type Pool struct {
	// pool of composers
	composers chan *Composer
	// size of pool
	size   int
	closed atomic.Bool
	close  sync.Once
}

// NewPool creates a pool of size Composers sharing table, pipeline, classes
// and logger from opts.  opts.Rand is ignored, slot i is seeded with
// opts.Seed+i.
func NewPool(size int, table *scale.Table, opts Options) (*Pool, error) {

	if size < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "pool size must be at least 1, got %d", size)
	}

	p := &Pool{
		composers: make(chan *Composer, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		o := opts
		o.Seed = opts.Seed + uint64(i)
		o.Rand = nil

		p.Return(NewComposer(table, o))
	}

	return p, nil
}

// Get takes a Composer from the pool, blocking until one is free
func (p *Pool) Get() *Composer {
	return <-p.composers
}

// Return puts a Composer back into the pool
func (p *Pool) Return(c *Composer) {

	if p.closed.Load() {
		return
	}

	select {
	case p.composers <- c:
	default:
		// pool is full
	}
}

// Size returns the number of Composers in the pool
func (p *Pool) Size() int {
	return p.size
}

// Close drains the pool, Composers still checked out are dropped when
// returned
func (p *Pool) Close() {
	p.close.Do(func() {
		p.closed.Store(true)

		for {
			select {
			case <-p.composers:
			default:
				return
			}
		}
	})
}
