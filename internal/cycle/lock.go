package cycle

import (
	"errors"
	"fmt"
	"os"
)

// ErrCycleRunning is returned when a second cycle is invoked while one
// holds the rule repository lock. Callers fail fast; they never queue.
var ErrCycleRunning = errors.New("cycle already running")

// acquireLock takes an exclusive advisory lock file next to the rule
// file for the duration of a cycle. The returned release func removes it.
func acquireLock(rulesPath string) (release func(), err error) {
	path := rulesPath + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w (lock held at %s)", ErrCycleRunning, path)
		}
		return nil, fmt.Errorf("acquire cycle lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { os.Remove(path) }, nil
}
