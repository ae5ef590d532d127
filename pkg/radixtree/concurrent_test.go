// Copyright 2023 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package radixtree

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/intel/memtrie/pkg/memory"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReaders(t *testing.T) {
	const (
		workers = 8
		rounds  = 20
	)

	b := newBuilder(t, 4)
	indices := randomIndices(rand.New(rand.NewSource(4)), 200, 1<<20)
	b.build(indices...)
	expected := entriesOf(indices)

	// A small cache keeps pages being evicted and reloaded while shared.
	cache, err := memory.NewCachingReader(b.mem, b.cfg.Format, 4, 64)
	require.NoError(t, err)
	trie, err := Open(cache, b.cfg, testRootAddr)
	require.NoError(t, err)

	errs := make(chan error, workers)
	wg := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if (w+r)%2 == 0 {
					entries, err := trie.Collect(0, 0)
					if err != nil {
						errs <- err
						return
					}
					if diff := cmp.Diff(expected, entries); diff != "" {
						errs <- fmt.Errorf("worker %d: unexpected entries (-expected +got):\n%s", w, diff)
						return
					}
					continue
				}
				for _, e := range expected {
					value, found, err := trie.Lookup(e.Index)
					if err != nil {
						errs <- err
						return
					}
					if !found || value != e.Value {
						errs <- fmt.Errorf("worker %d: index %d: got 0x%x (found %v), expected 0x%x",
							w, e.Index, value, found, e.Value)
						return
					}
				}
				if r%5 == 0 {
					cache.Purge()
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	hits, misses := cache.Stats()
	require.NotZero(t, hits)
	require.NotZero(t, misses)
}
