package domain

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// MasterKeyStatus tracks where a master key version is in its lifecycle.
type MasterKeyStatus string

const (
	// MasterKeyActive marks the single version used to wrap new DEKs.
	MasterKeyActive MasterKeyStatus = "active"

	// MasterKeyRetired marks a version that only unwraps existing entries until rewrap completes.
	MasterKeyRetired MasterKeyStatus = "retired"
)

// MasterKey is a versioned 32-byte key-encryption key that wraps DEKs.
//
// Key material never leaves the chain except transiently during wrap and unwrap.
type MasterKey struct {
	Version uint
	Key     []byte
	Status  MasterKeyStatus
}

// MasterKeyChain holds every master key version still needed to unwrap stored entries.
//
// Exactly one version is active at any time. Versions are strictly increasing; a rotation
// installs max(version)+1 as active and retires the previous one. Retired versions are
// zeroized and dropped with Forget once nothing references them.
//
// The chain also counts in-flight wraps per version so a forget can wait until no wrap
// under a retired version is still on its way to the key store.
type MasterKeyChain struct {
	mu       sync.RWMutex
	keys     map[uint]*MasterKey
	inflight map[uint]*atomic.Int64
	active   atomic.Uint64
}

// NewMasterKeyChain returns an empty chain. Use Add and Activate to populate it.
func NewMasterKeyChain() *MasterKeyChain {
	return &MasterKeyChain{
		keys:     make(map[uint]*MasterKey),
		inflight: make(map[uint]*atomic.Int64),
	}
}

// Add stores a copy of key under version as a retired key. The caller owns key and
// should zero it afterwards.
func (m *MasterKeyChain) Add(version uint, key []byte) error {
	if len(key) != KeySize {
		return ErrInvalidKeySize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[version]; ok {
		return fmt.Errorf("%w: version %d", ErrMasterKeyVersionExists, version)
	}
	m.keys[version] = &MasterKey{Version: version, Key: slices.Clone(key), Status: MasterKeyRetired}
	m.inflight[version] = atomic.NewInt64(0)
	return nil
}

// Activate marks version as the active key and retires whichever key was active before.
func (m *MasterKeyChain) Activate(version uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.activateLocked(version)
}

func (m *MasterKeyChain) activateLocked(version uint) error {
	next, ok := m.keys[version]
	if !ok {
		return fmt.Errorf("%w: version %d", ErrActiveMasterKeyNotFound, version)
	}
	if prev, ok := m.keys[uint(m.active.Load())]; ok && prev.Status == MasterKeyActive {
		// Swap in fresh structs so readers holding the old pointer never observe a write.
		m.keys[prev.Version] = &MasterKey{Version: prev.Version, Key: prev.Key, Status: MasterKeyRetired}
	}
	m.keys[version] = &MasterKey{Version: next.Version, Key: next.Key, Status: MasterKeyActive}
	m.active.Store(uint64(version))
	return nil
}

// ActiveVersion returns the version currently used to wrap new DEKs.
func (m *MasterKeyChain) ActiveVersion() uint {
	return uint(m.active.Load())
}

// Get returns the key stored under version. The returned key must not be retained.
func (m *MasterKeyChain) Get(version uint) (*MasterKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mk, ok := m.keys[version]
	return mk, ok
}

// Versions returns every held version in ascending order.
func (m *MasterKeyChain) Versions() []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := make([]uint, 0, len(m.keys))
	for v := range m.keys {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

// RetiredVersions returns every held version that is not active, in ascending order.
func (m *MasterKeyChain) RetiredVersions() []uint {
	active := m.ActiveVersion()
	return slices.DeleteFunc(m.Versions(), func(v uint) bool { return v == active })
}

// WithKey runs fn with the key stored under version. Forget cannot zeroize the key while
// fn is running.
func (m *MasterKeyChain) WithKey(version uint, fn func(mk *MasterKey) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mk, ok := m.keys[version]
	if !ok {
		return fmt.Errorf("%w: version %d", ErrMasterKeyVersionUnknown, version)
	}
	return fn(mk)
}

// WithActiveKey runs fn with the active key and registers an in-flight wrap under its
// version. The returned release func must be called once the wrapped result is stored
// or discarded; it is nil when an error is returned.
func (m *MasterKeyChain) WithActiveKey(fn func(mk *MasterKey) error) (func(), error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	version := uint(m.active.Load())
	mk, ok := m.keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: version %d", ErrActiveMasterKeyNotFound, version)
	}
	counter := m.inflight[version]
	counter.Inc()
	if err := fn(mk); err != nil {
		counter.Dec()
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { counter.Dec() }) }, nil
}

// InFlight returns the number of wraps under version that have not been released yet.
func (m *MasterKeyChain) InFlight(version uint) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if counter, ok := m.inflight[version]; ok {
		return counter.Load()
	}
	return 0
}

// Rotate installs a copy of key as version max(existing)+1, makes it active and retires
// the previous active version. It returns the new version.
func (m *MasterKeyChain) Rotate(key []byte) (uint, error) {
	if len(key) != KeySize {
		return 0, ErrInvalidKeySize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var next uint = 1
	for v := range m.keys {
		if v >= next {
			next = v + 1
		}
	}
	m.keys[next] = &MasterKey{Version: next, Key: slices.Clone(key), Status: MasterKeyRetired}
	m.inflight[next] = atomic.NewInt64(0)
	if err := m.activateLocked(next); err != nil {
		return 0, err
	}
	return next, nil
}

// Forget zeroizes and drops a retired version. Forgetting an unknown version is a no-op.
func (m *MasterKeyChain) Forget(version uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mk, ok := m.keys[version]
	if !ok {
		return nil
	}
	if mk.Status == MasterKeyActive {
		return ErrActiveMasterKeyForget
	}
	Zero(mk.Key)
	delete(m.keys, version)
	delete(m.inflight, version)
	return nil
}

// Close zeroizes every key and resets the chain.
func (m *MasterKeyChain) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for v, mk := range m.keys {
		Zero(mk.Key)
		delete(m.keys, v)
	}
	clear(m.inflight)
	m.active.Store(0)
}

// ParseMasterKeyChain builds a chain from the MASTER_KEYS and ACTIVE_MASTER_KEY_VERSION
// settings.
//
// Format example:
//
//	MASTER_KEYS="1:YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXoxMjM0NTY3OA==,2:MTIzNDU2Nzg5MGFiY2RlZmdoaWprbG1ub3BxcnN0dXZ3eA=="
//	ACTIVE_MASTER_KEY_VERSION=2
//
// Decoded key bytes are zeroed once copied into the chain. On error the partial chain is
// closed.
func ParseMasterKeyChain(raw string, active uint) (*MasterKeyChain, error) {
	return ParseMasterKeyChainWith(raw, active, nil)
}

// ParseMasterKeyChainWith is ParseMasterKeyChain with an optional unwrap step applied to
// every decoded value, used when MASTER_KEYS holds KMS-encrypted keys.
func ParseMasterKeyChainWith(
	raw string,
	active uint,
	unwrap func(ciphertext []byte) ([]byte, error),
) (*MasterKeyChain, error) {
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}
	if active == 0 {
		return nil, ErrActiveMasterKeyVersionNotSet
	}

	mkc := NewMasterKeyChain()
	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			mkc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		version, err := strconv.ParseUint(p[0], 10, 0)
		if err != nil || version == 0 {
			mkc.Close()
			return nil, fmt.Errorf("%w: version %q", ErrInvalidMasterKeysFormat, p[0])
		}
		key, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for version %d: %v", ErrInvalidMasterKeyBase64, version, err)
		}
		if unwrap != nil {
			plain, err := unwrap(key)
			if err != nil {
				mkc.Close()
				return nil, fmt.Errorf("failed to unwrap master key version %d: %w", version, err)
			}
			key = plain
		}
		err = mkc.Add(uint(version), key)
		Zero(key)
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("master key version %d: %w", version, err)
		}
	}

	if err := mkc.Activate(active); err != nil {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_VERSION=%d", ErrActiveMasterKeyNotFound, active)
	}

	return mkc, nil
}
