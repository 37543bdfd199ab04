package safe_close

import "sync"

// SafeClose coordinates the shutdown of a service and the background
// goroutines it owns. CloseWait returns only after every attached goroutine
// has exited and Done was called.
//
//  1. The main goroutine waits on ReceiveCloseSignal and calls Done before it returns.
//  2. Background goroutines are started with Attach or Go and watch the close signal.
//  3. Any goroutine may call SendCloseSignal to stop the service on a fatal error.
//     CloseWait must not be called from an attached goroutine, it would deadlock.
//  4. Any third party can call CloseWait to stop the service.
type SafeClose struct {
	m           sync.Mutex
	wg          sync.WaitGroup
	closeSignal chan struct{}
	done        chan struct{}
	doneOnce    sync.Once
	closeErr    error
}

func NewSafeClose() *SafeClose {
	return &SafeClose{
		closeSignal: make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// CloseWait sends a close signal and waits until the service is closed.
// It is concurrent safe and can be called multiple times.
func (s *SafeClose) CloseWait() {
	s.SendCloseSignal(nil)
	s.wg.Wait()
	<-s.done
}

// SendCloseSignal sends a close signal. Only the first non-nil err is kept.
func (s *SafeClose) SendCloseSignal(err error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closedLocked() {
		return
	}
	if err != nil {
		s.closeErr = err
	}
	close(s.closeSignal)
}

// Err returns the error passed to the first SendCloseSignal.
func (s *SafeClose) Err() error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.closeErr
}

// Closed reports whether the close signal was sent.
func (s *SafeClose) Closed() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.closedLocked()
}

func (s *SafeClose) closedLocked() bool {
	select {
	case <-s.closeSignal:
		return true
	default:
		return false
	}
}

func (s *SafeClose) ReceiveCloseSignal() <-chan struct{} {
	return s.closeSignal
}

// Attach runs f in a new goroutine tracked by CloseWait.
// f must watch closeSignal and call done before it returns.
// If s was closed, f will not run.
func (s *SafeClose) Attach(f func(done func(), closeSignal <-chan struct{})) {
	s.m.Lock()
	if s.closedLocked() {
		s.m.Unlock()
		return
	}
	s.wg.Add(1)
	s.m.Unlock()

	go f(s.wg.Done, s.closeSignal)
}

// Go is like Attach but calls done for f.
func (s *SafeClose) Go(f func(closeSignal <-chan struct{})) {
	s.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		f(closeSignal)
	})
}

// Done notifies CloseWait that the main goroutine is done.
// It is concurrent safe and can be called multiple times.
func (s *SafeClose) Done() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}
