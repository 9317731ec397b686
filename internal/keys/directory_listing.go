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
	"sort"
	"strings"

	"github.com/nozomi-build/forge"
)

// DirectoryListingValue is the sorted set of immediate entry names in a
// directory. Invalidated by NotifyModifiedPaths exactly like FileState.
type DirectoryListingValue struct {
	Dir     string
	Entries []string
}

func (v DirectoryListingValue) Fingerprint() string {
	return v.Dir + ":" + strings.Join(v.Entries, ",")
}

// DirectoryListingKey returns the Key identifying dir's entry set.
func DirectoryListingKey(family forge.Family, dir string) forge.Key {
	return forge.NewKey(family, dir)
}

// DirectoryListingEvalFunc is a leaf evaluator like FileStateEvalFunc: it
// reads the live filesystem directly and touches no other keys.
func DirectoryListingEvalFunc(_ context.Context, k forge.Key, _ forge.Env) forge.Result {
	dir := k.ID
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return forge.Done(forge.Value{Family: k.Family, Data: DirectoryListingValue{Dir: dir}})
		}
		return forge.Fail(fmt.Errorf("readdir %s: %w", dir, err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return forge.Done(forge.Value{Family: k.Family, Data: DirectoryListingValue{Dir: dir, Entries: names}})
}
