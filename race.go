// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package daq

// RaceEnabled reports whether the binary was built with -race. The
// parking stress tests skip under the detector: slot contents are handed
// over through the avail and done counters, an ordering it cannot follow.
const RaceEnabled = true
