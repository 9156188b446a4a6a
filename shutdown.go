package foretell

import (
	"sync"

	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/types/callstack"
)

var (
	appDestructors = callstack.NewCallStack()
	shutdownMx     sync.Mutex
)

// GetDestructorManager returns the process-wide cleanup stack
func GetDestructorManager() *callstack.CallStack {
	return appDestructors
}

// RegisterDestructor adds a cleanup step run by Shutdown, last registered first
func RegisterDestructor(fn callstack.CallableFn) {
	appDestructors.Add(fn)
}

// Shutdown runs every registered destructor; cause is logged when not nil
func Shutdown(cause error) error {
	shutdownMx.Lock()
	defer shutdownMx.Unlock()

	logger := log.New("foretell")
	if cause != nil {
		logger.Error(cause, "shutting down after error")
	}
	err := appDestructors.Run(false)
	if err != nil {
		logger.Error(err, "error while shutting down")
	}
	return err
}
