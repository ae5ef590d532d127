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

package memory

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultCachePageSize is the default size of cached memory pages.
	DefaultCachePageSize = 4096
	// DefaultCachePages is the default number of cached pages.
	DefaultCachePages = 256
)

// CachingReader caches page-sized chunks of memory read through another
// Reader. Cached pages are never invalidated implicitly, Purge drops them.
type CachingReader struct {
	reader   Reader
	format   Format
	pageSize uint64
	pages    *lru.Cache[uint64, []byte]
	hits     uint64
	misses   uint64
}

// NewCachingReader creates a cache of at most pages pages of pageSize bytes
// in front of reader. pageSize must be a power of two.
func NewCachingReader(reader Reader, format Format, pages, pageSize int) (*CachingReader, error) {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return nil, errors.Errorf("invalid cache page size %d", pageSize)
	}
	cache, err := lru.New[uint64, []byte](pages)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memory cache")
	}
	return &CachingReader{
		reader:   reader,
		format:   format,
		pageSize: uint64(pageSize),
		pages:    cache,
	}, nil
}

// ReadBytes reads n bytes starting at addr, using cached pages when possible.
func (c *CachingReader) ReadBytes(addr uint64, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	end := addr + uint64(n)
	if end < addr {
		return nil, readError(addr, n, ErrUnmapped)
	}
	for cur := addr; cur < end; {
		base := cur &^ (c.pageSize - 1)
		page, err := c.page(base)
		if err != nil {
			// A page straddling a mapping boundary cannot be cached as a whole.
			log.Debug("uncached read of %d bytes at 0x%x: %v", n, addr, err)
			return c.reader.ReadBytes(addr, n)
		}
		stop := base + c.pageSize
		if stop > end || stop < base {
			stop = end
		}
		buf = append(buf, page[cur-base:stop-base]...)
		cur = stop
	}
	return buf, nil
}

// ReadWord reads a machine word at addr.
func (c *CachingReader) ReadWord(addr uint64) (uint64, error) {
	return readWord(c, c.format, addr)
}

func (c *CachingReader) page(base uint64) ([]byte, error) {
	if page, ok := c.pages.Get(base); ok {
		atomic.AddUint64(&c.hits, 1)
		stats.cacheHit()
		return page, nil
	}
	atomic.AddUint64(&c.misses, 1)
	stats.cacheMiss()
	page, err := c.reader.ReadBytes(base, int(c.pageSize))
	if err != nil {
		return nil, err
	}
	c.pages.Add(base, page)
	return page, nil
}

// Purge drops all cached pages.
func (c *CachingReader) Purge() {
	c.pages.Purge()
}

// Len returns the number of cached pages.
func (c *CachingReader) Len() int {
	return c.pages.Len()
}

// Stats returns the number of cache hits and misses.
func (c *CachingReader) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}
