package testutil

import (
	"errors"
	"sync"

	dErrors "vcregistry/pkg/domain-errors"
)

// Outcomes buckets the results of a concurrent run by domain error code.
type Outcomes struct {
	Successes int32
	// Errors counts failures with no domain code or an internal one; those
	// are never an expected outcome of a race.
	Errors    int32
	FirstErr  error
	byCode    map[dErrors.Code]int32
}

// Count returns how many calls failed with code.
func (o *Outcomes) Count(code dErrors.Code) int32 {
	return o.byCode[code]
}

func (o *Outcomes) Total() int32 {
	total := o.Successes + o.Errors
	for _, n := range o.byCode {
		total += n
	}
	return total
}

func (o *Outcomes) record(err error) {
	var de *dErrors.Error
	switch {
	case err == nil:
		o.Successes++
	case !errors.As(err, &de) || de.Code == dErrors.CodeInternal:
		o.Errors++
		if o.FirstErr == nil {
			o.FirstErr = err
		}
	default:
		o.byCode[de.Code]++
	}
}

// RunConcurrent starts n goroutines, releases them together so they contend
// on the same key, and waits for all of them.
func RunConcurrent(n int, fn func(idx int) error) *Outcomes {
	out := &Outcomes{byCode: make(map[dErrors.Code]int32)}
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		gate = make(chan struct{})
	)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			err := fn(i)
			mu.Lock()
			out.record(err)
			mu.Unlock()
		}()
	}
	close(gate)
	wg.Wait()

	return out
}
