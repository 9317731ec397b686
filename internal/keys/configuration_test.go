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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozomi-build/forge"
)

func TestConfigurationCollectionEvalFuncReadsBuildVariable(t *testing.T) {
	env := newFakeEnv()
	env.setReady(BuildVariableKey(TopLevelArtifactContext), forge.Value{
		Data: map[string]string{"mode": "release"},
	})

	k := ConfigurationCollectionKey(1)
	res := ConfigurationCollectionEvalFunc(context.Background(), k, env)
	require.Equal(t, forge.OutcomeValue, res.Outcome)
	v := res.Value.Data.(ConfigurationCollectionValue)
	assert.Equal(t, "release", v.Options["mode"])
}

func TestConfigurationCollectionEvalFuncMissingWhenPending(t *testing.T) {
	env := newFakeEnv()
	k := ConfigurationCollectionKey(1)
	res := ConfigurationCollectionEvalFunc(context.Background(), k, env)
	assert.Equal(t, forge.OutcomeMissing, res.Outcome)
}

func TestConfigurationCollectionEvalFuncFailsOnError(t *testing.T) {
	env := newFakeEnv()
	env.setErrored(BuildVariableKey(TopLevelArtifactContext))
	k := ConfigurationCollectionKey(1)
	res := ConfigurationCollectionEvalFunc(context.Background(), k, env)
	assert.Equal(t, forge.OutcomeFail, res.Outcome)
}

func TestConfigurationCollectionValueFingerprintIsOrderIndependent(t *testing.T) {
	v1 := ConfigurationCollectionValue{Options: map[string]string{"a": "1", "b": "2"}}
	v2 := ConfigurationCollectionValue{Options: map[string]string{"b": "2", "a": "1"}}
	assert.Equal(t, v1.Fingerprint(), v2.Fingerprint())
}
