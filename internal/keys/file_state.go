// Copyright 2011 Google Inc. All Rights Reserved.
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

package keys

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nozomi-build/forge"
)

// FileStateValue is the result of probing one path, grounded on
// ninja's Node.Stat/DiskInterface (disk_interface.go): existence plus
// enough metadata to detect a change without reading file contents.
type FileStateValue struct {
	Path    string
	Exists  bool
	ModTime time.Time
	Size    int64
}

func (v FileStateValue) Fingerprint() string {
	if !v.Exists {
		return v.Path + ":absent"
	}
	return fmt.Sprintf("%s:%d:%d", v.Path, v.ModTime.UnixNano(), v.Size)
}

// FileStateKey returns the Key identifying path's filesystem state.
func FileStateKey(family forge.Family, path string) forge.Key {
	return forge.NewKey(family, path)
}

// FileStateEvalFunc is a leaf evaluator: it touches no other keys, so it
// can never return OutcomeMissing. Its only external input is the live
// filesystem, which NotifyModifiedPaths invalidates when something changes
// underneath it.
func FileStateEvalFunc(_ context.Context, k forge.Key, _ forge.Env) forge.Result {
	path := k.ID
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return forge.Done(forge.Value{Family: k.Family, Data: FileStateValue{Path: path}})
		}
		return forge.Fail(fmt.Errorf("stat %s: %w", path, err))
	}
	return forge.Done(forge.Value{Family: k.Family, Data: FileStateValue{
		Path:    path,
		Exists:  true,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}})
}
