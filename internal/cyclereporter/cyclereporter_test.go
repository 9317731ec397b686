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

package cyclereporter

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nozomi-build/forge"
)

func TestReportDeduplicatesWithinOneCycle(t *testing.T) {
	var buf strings.Builder
	log := zerolog.New(&buf)
	r := New(log)

	cycle := []forge.Key{forge.NewKey(1, "a"), forge.NewKey(1, "b")}
	r.Report(forge.NewKey(1, "a"), cycle)
	r.Report(forge.NewKey(1, "a"), cycle)

	assert.Equal(t, 1, strings.Count(buf.String(), "dependency cycle"))
}

func TestReportUsesRegisteredFormatter(t *testing.T) {
	var buf strings.Builder
	log := zerolog.New(&buf)
	r := New(log)
	r.RegisterFormatter(1, func(requested forge.Key, cycle []forge.Key) string {
		return "custom cycle report"
	})

	r.Report(forge.NewKey(1, "a"), []forge.Key{forge.NewKey(1, "a")})
	assert.Contains(t, buf.String(), "custom cycle report")
}
