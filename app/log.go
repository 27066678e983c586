// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package app

import (
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
	"github.com/gxcnet/gxcpeerd/util/panics"
)

var log = logger.RegisterSubSystem("GXCD")
var spawn = panics.GoroutineWrapperFunc(log)
