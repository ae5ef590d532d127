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

package target

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Parse parses a YAML or JSON layout. If the layout names a base preset,
// the preset provides the defaults and structs given in data replace the
// preset structs of the same name.
func Parse(data []byte) (*Layout, error) {
	probe := struct {
		Base string `json:"base"`
	}{}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "failed to parse layout")
	}

	l := &Layout{NodeShiftSize: 1, ByteOrder: LittleEndian}
	if probe.Base != "" {
		if l = Preset(probe.Base); l == nil {
			return nil, targetError("unknown base layout %q", probe.Base)
		}
	}
	if err := yaml.UnmarshalStrict(data, l); err != nil {
		return nil, errors.Wrap(err, "failed to parse layout")
	}
	l.Base = probe.Base

	if err := l.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid layout %q", l.Name)
	}
	return l, nil
}

// Load reads a layout from a YAML or JSON file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read layout")
	}
	l, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "layout file %s", path)
	}
	if l.Name == "" {
		l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	log.Debug("loaded layout %s from %s", l.Name, path)
	return l, nil
}

// Marshal returns the layout as YAML.
func (l *Layout) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal layout %q", l.Name)
	}
	return data, nil
}

// LayoutCache caches layouts by preset name or file path.
type LayoutCache struct {
	sync.Mutex
	layouts map[string]*Layout
	load    func(string) (*Layout, error)
}

// NewLayoutCache creates an empty layout cache.
func NewLayoutCache() *LayoutCache {
	return &LayoutCache{
		layouts: make(map[string]*Layout),
		load:    Load,
	}
}

// Get returns the preset with the given name, or the layout loaded from
// the file at the given path. Loaded layouts are cached until Forget.
func (c *LayoutCache) Get(name string) (*Layout, error) {
	if l := Preset(name); l != nil {
		return l, nil
	}

	c.Lock()
	defer c.Unlock()

	if l, ok := c.layouts[name]; ok {
		return l.Clone(), nil
	}
	l, err := c.load(name)
	if err != nil {
		return nil, err
	}
	c.layouts[name] = l
	return l.Clone(), nil
}

// Forget drops a cached layout, or all of them if path is empty.
func (c *LayoutCache) Forget(path string) {
	c.Lock()
	defer c.Unlock()
	if path == "" {
		c.layouts = make(map[string]*Layout)
		return
	}
	delete(c.layouts, path)
}
