package dataset

import "sync"

// IDGenerator hands out incrementing sequence numbers starting at 1
type IDGenerator struct {
	id int64
	sync.Mutex
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next sequence number
func (id *IDGenerator) GetNext() int64 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}

// Last returns the most recently issued number, 0 if none
func (id *IDGenerator) Last() int64 {
	id.Lock()
	defer id.Unlock()
	return id.id
}
