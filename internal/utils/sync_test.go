package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalMutex(t *testing.T) {
	testCases := map[string]struct {
		UseMutex bool

		ExpectHeldUnlocked bool
	}{
		"Locking": {
			UseMutex:           true,
			ExpectHeldUnlocked: false,
		},
		"ExternallySynchronized": {
			UseMutex:           false,
			ExpectHeldUnlocked: true,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			m := &OptionalMutex{UseMutex: testCase.UseMutex}
			require.Equal(t, testCase.ExpectHeldUnlocked, m.Held())

			m.Lock()
			require.True(t, m.Held())
			if testCase.UseMutex {
				require.False(t, m.Mutex.TryLock())
			}

			m.Unlock()
			require.Equal(t, testCase.ExpectHeldUnlocked, m.Held())
			if testCase.UseMutex {
				require.True(t, m.Mutex.TryLock())
				m.Mutex.Unlock()
			}
		})
	}
}

func TestOptionalRWMutex(t *testing.T) {
	testCases := map[string]struct {
		UseMutex bool

		ExpectHeldUnlocked bool
	}{
		"Locking": {
			UseMutex:           true,
			ExpectHeldUnlocked: false,
		},
		"ExternallySynchronized": {
			UseMutex:           false,
			ExpectHeldUnlocked: true,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			m := &OptionalRWMutex{UseMutex: testCase.UseMutex}
			require.Equal(t, testCase.ExpectHeldUnlocked, m.Held())
			require.Equal(t, testCase.ExpectHeldUnlocked, m.RHeld())

			m.RLock()
			m.RLock()
			require.True(t, m.RHeld())
			require.Equal(t, testCase.ExpectHeldUnlocked, m.Held())

			m.RUnlock()
			require.True(t, m.RHeld())
			m.RUnlock()
			require.Equal(t, testCase.ExpectHeldUnlocked, m.RHeld())

			m.Lock()
			require.True(t, m.Held())
			require.True(t, m.RHeld())
			if testCase.UseMutex {
				require.False(t, m.Mutex.TryRLock())
			}

			m.Unlock()
			require.Equal(t, testCase.ExpectHeldUnlocked, m.Held())
			require.Equal(t, testCase.ExpectHeldUnlocked, m.RHeld())
		})
	}
}
