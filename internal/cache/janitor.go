package cache

import "time"

// Cleaner is anything the janitor can sweep.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps expired entries out of registered caches so
// idle caches do not hold dead values until the next Get.
type Janitor struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewJanitor() *Janitor {
	return &Janitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register adds a cache to the sweep set. Not safe to call after Start.
func (j *Janitor) Register(c Cleaner) {
	j.caches = append(j.caches, c)
}

// Start begins sweeping at the given interval.
func (j *Janitor) Start(interval time.Duration) {
	go j.run(interval)
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range j.caches {
				c.CleanExpired()
			}
		case <-j.stop:
			return
		}
	}
}

// Stop halts the sweep loop and waits for it to exit. Only valid after
// Start.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
