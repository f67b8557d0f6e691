// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package softi2c

import (
	"errors"
)

var (
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrInvalidAddress     = errors.New("address does not fit in 7 bits")
)
