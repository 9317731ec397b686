// Copyright 2012 Google Inc. All Rights Reserved.
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
	"sort"
	"strings"

	"github.com/nozomi-build/forge"
)

// ConfigurationCollectionValue is the resolved set of build options active
// for this evaluation, grounded on ninja's BuildConfig (build.go).
// It is a singleton: every ConfiguredTarget depends on the same key.
type ConfigurationCollectionValue struct {
	Options map[string]string
}

func (v ConfigurationCollectionValue) Fingerprint() string {
	names := make([]string, 0, len(v.Options))
	for n := range v.Options {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s=%s;", n, v.Options[n])
	}
	return b.String()
}

const configurationCollectionID = "singleton"

// ConfigurationCollectionKey returns the Key for the singleton active
// configuration.
func ConfigurationCollectionKey(family forge.Family) forge.Key {
	return forge.NewKey(family, configurationCollectionID)
}

// ConfigurationCollectionEvalFunc builds the active configuration from the
// TopLevelArtifactContext build variable, the façade's stand-in for
// command-line flags.
func ConfigurationCollectionEvalFunc(ctx context.Context, k forge.Key, env forge.Env) forge.Result {
	val, status := env.Get(ctx, BuildVariableKey(TopLevelArtifactContext))
	if status == forge.GetError {
		return forge.Fail(fmt.Errorf("configuration collection: top_level_artifact_context unavailable"))
	}
	if status == forge.GetPending {
		return forge.Missing()
	}
	opts, _ := val.Data.(map[string]string)
	return forge.Done(forge.Value{Family: k.Family, Data: ConfigurationCollectionValue{Options: opts}})
}
