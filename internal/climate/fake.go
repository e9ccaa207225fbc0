package climate

import "sync"

// FakeSensor is a test double that returns a scripted reading.
type FakeSensor struct {
	mu sync.Mutex

	Reading Reading
	Err     error
	Reads   int
}

// Set replaces the scripted reading and clears any error.
func (f *FakeSensor) Set(r Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reading = r
	f.Err = nil
}

// Fail makes subsequent reads return err.
func (f *FakeSensor) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// Read returns the scripted reading or error.
func (f *FakeSensor) Read() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.Err != nil {
		return Reading{}, f.Err
	}
	return f.Reading, nil
}
