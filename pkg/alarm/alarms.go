// Package alarm tracks conditions that are reported once when they appear and
// once when they go away, such as a room lacking state for control.
package alarm

import (
	"sort"
	"sync"
)

type ActiveAlarms struct {
	activeAlarms map[string]string
	sync.RWMutex
}

func New() *ActiveAlarms {
	return &ActiveAlarms{
		activeAlarms: make(map[string]string),
	}
}

// Add marks key as active with reason and returns true if it was not active
// before. A changed reason on an active key is stored but does not count as new.
func (a *ActiveAlarms) Add(key, reason string) bool {
	a.Lock()
	defer a.Unlock()
	if a.activeAlarms == nil {
		a.activeAlarms = make(map[string]string)
	}
	_, exists := a.activeAlarms[key]
	a.activeAlarms[key] = reason
	return !exists
}

// Remove returns true if key was active.
func (a *ActiveAlarms) Remove(key string) bool {
	a.Lock()
	defer a.Unlock()
	if _, exists := a.activeAlarms[key]; !exists {
		return false
	}
	delete(a.activeAlarms, key)
	return true
}

func (a *ActiveAlarms) Clear() bool {
	hasActive := false
	a.Lock()
	if len(a.activeAlarms) > 0 {
		hasActive = true
		a.activeAlarms = make(map[string]string)
	}
	a.Unlock()
	return hasActive
}

// Active returns the active keys and their reasons sorted by key.
func (a *ActiveAlarms) Active() []Alarm {
	a.RLock()
	defer a.RUnlock()
	result := make([]Alarm, 0, len(a.activeAlarms))
	for k, v := range a.activeAlarms {
		result = append(result, Alarm{Key: k, Reason: v})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

type Alarm struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}
