/*
Copyright 2011-2026 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package qpk

import (
	"strings"
	"testing"
	"time"
)

func TestEvent(t *testing.T) {
	now := time.Now()
	evt := NewEvent(EVT_COMPRESSION_END, 3, 28, 0xCAFE, EVT_HASH_64BITS, now)

	if evt == nil {
		t.Fatal("Event should be created")
	}

	if evt.Type() != EVT_COMPRESSION_END || evt.Symbols() != 3 || evt.Size() != 28 || evt.Time() != now {
		t.Errorf("Invalid event fields: %v", evt)
	}

	s := evt.String()

	if strings.Contains(s, "COMPRESSION_END") == false || strings.Contains(s, "000000000000cafe") == false {
		t.Errorf("Invalid event string: %s", s)
	}

	if NewEvent(EVT_COMPRESSION_START, 0, 0, 0, 32, now) != nil {
		t.Error("Invalid hash type should be rejected")
	}

	if NewEvent(EVT_DECOMPRESSION_START, -1, 0, 0, EVT_HASH_NONE, time.Time{}).Time().IsZero() {
		t.Error("Zero time should be replaced with the current time")
	}

	if EventTypeName(42) != "UNKNOWN" {
		t.Error("Invalid name for unknown event type")
	}
}
