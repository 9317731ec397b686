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

package forge

import "fmt"

// Value is the result of a successful evaluation of a key. Values are
// immutable once produced; Data carries the family-specific payload.
type Value struct {
	Family Family
	Data   any
}

// Fingerprinter lets a value family opt into cheap change detection: when a
// Dirty node is revalidated, the evaluator compares the
// fingerprint of each dependency's value against the one recorded at the
// node's last completion, and skips re-invoking the evaluator function if
// every fingerprint is unchanged.
//
// Families whose Data does not implement Fingerprinter fall back to
// fmt.Sprintf("%#v", ...), which is correct but defeats pruning for values
// that do not have a stable, cheap textual form (e.g. closures); register a
// Fingerprinter when that matters.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint computes the change-detection fingerprint for v.
func Fingerprint(v Value) string {
	if v.Data == nil {
		return fmt.Sprintf("%d:<nil>", v.Family)
	}
	if f, ok := v.Data.(Fingerprinter); ok {
		return fmt.Sprintf("%d:%s", v.Family, f.Fingerprint())
	}
	return fmt.Sprintf("%d:%#v", v.Family, v.Data)
}
