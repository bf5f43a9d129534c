//go:build cgo

package crypto

import (
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// PKCS11SessionPool reuses sessions against one module slot. Opening
// a session and logging in are expensive on most HSMs, so signers
// check sessions out per operation and hand them back instead of
// reconnecting.
type PKCS11SessionPool struct {
	mu       sync.Mutex
	ctx      *pkcs11.Ctx
	module   string
	slotID   uint
	pin      string
	idle     []pkcs11.SessionHandle
	borrowed map[pkcs11.SessionHandle]bool
	loggedIn bool
	closed   bool
}

// One pool per (module, slot) in the process. C_Initialize and
// C_Login are global per token, so separate pools for the same slot
// would fight each other.
var (
	pools   = make(map[string]*PKCS11SessionPool)
	poolsMu sync.Mutex
)

func poolKey(modulePath string, slotID uint) string {
	return fmt.Sprintf("%s:%d", modulePath, slotID)
}

// GetSessionPool returns the process-wide pool for a module and slot,
// creating and initializing it on first use.
func GetSessionPool(modulePath string, slotID uint, pin string) (*PKCS11SessionPool, error) {
	poolsMu.Lock()
	defer poolsMu.Unlock()

	key := poolKey(modulePath, slotID)
	if pool, ok := pools[key]; ok {
		pool.mu.Lock()
		alive := !pool.closed
		pool.mu.Unlock()
		if alive {
			return pool, nil
		}
		delete(pools, key)
	}

	ctx := pkcs11.New(modulePath)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 module: %s", modulePath)
	}
	if err := ctx.Initialize(); err != nil && !isPKCS11Err(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		ctx.Destroy()
		return nil, fmt.Errorf("failed to initialize PKCS#11 module: %w", err)
	}

	pool := &PKCS11SessionPool{
		ctx:      ctx,
		module:   modulePath,
		slotID:   slotID,
		pin:      pin,
		borrowed: make(map[pkcs11.SessionHandle]bool),
	}
	pools[key] = pool
	return pool, nil
}

// isPKCS11Err reports whether err is the given PKCS#11 return code.
func isPKCS11Err(err error, code pkcs11.Error) bool {
	e, ok := err.(pkcs11.Error)
	return ok && e == code
}

// Context returns the underlying PKCS#11 context.
func (p *PKCS11SessionPool) Context() *pkcs11.Ctx {
	return p.ctx
}

// SlotID returns the slot this pool serves.
func (p *PKCS11SessionPool) SlotID() uint {
	return p.slotID
}

// Acquire checks a session out of the pool, opening a new one when
// none is idle. The returned release function must be called to hand
// the session back.
func (p *PKCS11SessionPool) Acquire() (pkcs11.SessionHandle, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, nil, fmt.Errorf("session pool is closed")
	}

	session, err := p.takeLocked()
	if err != nil {
		return 0, nil, err
	}
	p.borrowed[session] = true

	release := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.borrowed, session)
		if p.closed {
			_ = p.ctx.CloseSession(session)
			return
		}
		p.idle = append(p.idle, session)
	}
	return session, release, nil
}

// takeLocked pops an idle session, or opens a fresh one and performs
// the one-time token login. Caller holds p.mu.
func (p *PKCS11SessionPool) takeLocked() (pkcs11.SessionHandle, error) {
	if n := len(p.idle); n > 0 {
		session := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return session, nil
	}

	session, err := p.ctx.OpenSession(p.slotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return 0, fmt.Errorf("failed to open session: %w", err)
	}

	// Login state is per token, not per session.
	if p.pin != "" && !p.loggedIn {
		if err := p.ctx.Login(session, pkcs11.CKU_USER, p.pin); err != nil && !isPKCS11Err(err, pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
			_ = p.ctx.CloseSession(session)
			return 0, fmt.Errorf("failed to login: %w", err)
		}
		p.loggedIn = true
	}
	return session, nil
}

// Close logs out, closes every session, and finalizes the module.
// Call at program shutdown.
func (p *PKCS11SessionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	var errs []error

	if p.loggedIn {
		if session, ok := p.anySessionLocked(); ok {
			if err := p.ctx.Logout(session); err != nil && !isPKCS11Err(err, pkcs11.CKR_USER_NOT_LOGGED_IN) {
				errs = append(errs, fmt.Errorf("logout: %w", err))
			}
		}
	}

	for _, session := range p.idle {
		if err := p.ctx.CloseSession(session); err != nil {
			errs = append(errs, fmt.Errorf("close idle session: %w", err))
		}
	}
	for session := range p.borrowed {
		if err := p.ctx.CloseSession(session); err != nil {
			errs = append(errs, fmt.Errorf("close borrowed session: %w", err))
		}
	}

	if err := p.ctx.Finalize(); err != nil && !isPKCS11Err(err, pkcs11.CKR_CRYPTOKI_NOT_INITIALIZED) {
		errs = append(errs, fmt.Errorf("finalize: %w", err))
	}
	p.ctx.Destroy()
	p.mu.Unlock()

	// Registry lock is taken after releasing p.mu: GetSessionPool
	// locks in the other order.
	poolsMu.Lock()
	delete(pools, poolKey(p.module, p.slotID))
	poolsMu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing pool: %v", errs)
	}
	return nil
}

// anySessionLocked returns some live session for token-level calls
// such as Logout. Caller holds p.mu.
func (p *PKCS11SessionPool) anySessionLocked() (pkcs11.SessionHandle, bool) {
	if len(p.idle) > 0 {
		return p.idle[0], true
	}
	for s := range p.borrowed {
		return s, true
	}
	return 0, false
}

// CloseAllPools closes every pool in the process. Use at exit.
func CloseAllPools() {
	poolsMu.Lock()
	open := make([]*PKCS11SessionPool, 0, len(pools))
	for _, pool := range pools {
		open = append(open, pool)
	}
	poolsMu.Unlock()

	for _, pool := range open {
		_ = pool.Close()
	}
}
