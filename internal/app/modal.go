/**
 * @description
 * Modal lifecycle management for the checkout overlay. The manager owns
 * creation, single-instance tracking, and teardown of the dialog and carries
 * no business logic.
 *
 * Guarantees:
 * - At most one active modal instance process-wide. Opening while one is
 *   active closes the existing instance first, waits a short fixed pause for
 *   the close animation, and only then opens the new one, so dialogs never
 *   stack.
 * - Close restores the page scroll-lock flag, removes the dialog, and
 *   releases the handle so a subsequent Open is possible.
 */

package app

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ModalHandle identifies one open modal instance.
type ModalHandle struct {
	ID        string
	AttemptID string
}

// modalInstance is the tracked state of the single open dialog.
type modalInstance struct {
	handle  ModalHandle
	content string
}

// ModalManager tracks the single overlay dialog and the page scroll-lock flag.
type ModalManager struct {
	mu           sync.Mutex
	active       *modalInstance
	scrollLocked bool
	closePause   time.Duration
	sleep        func(time.Duration)
}

// NewModalManager creates a manager with the given close-animation pause.
func NewModalManager(closePause time.Duration) *ModalManager {
	return &ModalManager{
		closePause: closePause,
		sleep:      time.Sleep,
	}
}

// Open mounts the dialog for the given attempt and returns its handle. If a
// dialog is already open it is closed first; the observed pause between the
// close and the new open is the close-animation delay.
func (m *ModalManager) Open(attemptID, content string) ModalHandle {
	m.mu.Lock()
	if m.active != nil {
		previous := m.active.handle
		m.closeLocked()
		m.mu.Unlock()
		log.Printf("level=info component=modal msg=\"closed existing modal before reopen\" previous_handle=%s", previous.ID)
		m.sleep(m.closePause)
		m.mu.Lock()
	}

	handle := ModalHandle{ID: uuid.NewString(), AttemptID: attemptID}
	m.active = &modalInstance{handle: handle, content: content}
	m.scrollLocked = true
	m.mu.Unlock()
	return handle
}

// Close tears down the dialog identified by the handle. Closing a stale
// handle is a no-op; the scroll lock belongs to the live instance.
func (m *ModalManager) Close(handle ModalHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.handle.ID != handle.ID {
		return
	}
	m.closeLocked()
}

// CloseByAttempt tears down the dialog belonging to the attempt, if it is the
// live one. Used by the sweeper, which knows attempts rather than handles.
func (m *ModalManager) CloseByAttempt(attemptID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.handle.AttemptID != attemptID {
		return false
	}
	m.closeLocked()
	return true
}

// closeLocked removes the dialog and restores scroll state. Caller holds mu.
func (m *ModalManager) closeLocked() {
	m.active = nil
	m.scrollLocked = false
}

// Active returns the live handle, if any.
func (m *ModalManager) Active() (ModalHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ModalHandle{}, false
	}
	return m.active.handle, true
}

// ScrollLocked reports the page-wide scroll-lock flag.
func (m *ModalManager) ScrollLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scrollLocked
}
