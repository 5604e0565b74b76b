//
//  Copyright (c) 2020-2021 Datastax, Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one
//  or more contributor license agreements.  See the NOTICE file
//  distributed with this work for additional information
//  regarding copyright ownership.  The ASF licenses this file
//  to you under the Apache License, Version 2.0 (the
//  "License"); you may not use this file except in compliance
//  with the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing,
//  software distributed under the License is distributed on an
//  "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
//  KIND, either express or implied.  See the License for the
//  specific language governing permissions and limitations
//  under the License.
//

package util

import (
	"sort"
	"sync"
)

// SyncMap is a map protected with sync.RWMutex
type SyncMap[K comparable, V any] struct {
	sync.RWMutex
	data map[K]V
}

// NewSyncMap creates a new SyncMap
func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{
		data: make(map[K]V),
	}
}

// Put associates the specified value with the specified key in this map
func (sm *SyncMap[K, V]) Put(key K, value V) V {
	sm.Lock()
	defer sm.Unlock()

	sm.data[key] = value
	return value
}

// Replace puts a key and value pair and returns the previous value and whether it existed
func (sm *SyncMap[K, V]) Replace(key K, value V) (V, bool) {
	sm.Lock()
	defer sm.Unlock()
	previous, ok := sm.data[key]
	sm.data[key] = value
	return previous, ok
}

// Get returns the value to which the specified key is mapped
func (sm *SyncMap[K, V]) Get(key K) (V, bool) {
	sm.RLock()
	defer sm.RUnlock()

	v, ok := sm.data[key]
	return v, ok
}

// GetOrDefault returns the mapped value or defaultValue if there is no mapping for the key.
func (sm *SyncMap[K, V]) GetOrDefault(key K, defaultValue V) V {
	if v, ok := sm.Get(key); ok {
		return v
	}
	return defaultValue
}

// Size returns the size of the map
func (sm *SyncMap[K, V]) Size() int {
	sm.RLock()
	defer sm.RUnlock()
	return len(sm.data)
}

// IsEmpty returns whether the map is empty
func (sm *SyncMap[K, V]) IsEmpty() bool {
	return sm.Size() == 0
}

// Remove removes the specified key and associated value, it returns the removed value
func (sm *SyncMap[K, V]) Remove(key K) (V, bool) {
	sm.Lock()
	defer sm.Unlock()

	v, ok := sm.data[key]
	delete(sm.data, key)
	return v, ok
}

// Values returns a snapshot of the values ordered by less on the keys
func (sm *SyncMap[K, V]) Values(less func(a, b K) bool) []V {
	sm.RLock()
	keys := make([]K, 0, len(sm.data))
	for k := range sm.data {
		keys = append(keys, k)
	}
	sm.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	values := make([]V, 0, len(keys))
	for _, k := range keys {
		if v, ok := sm.Get(k); ok {
			values = append(values, v)
		}
	}
	return values
}
