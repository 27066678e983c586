package flowcontext

import (
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
	"github.com/gxcnet/gxcpeerd/util/panics"
)

var log = logger.RegisterSubSystem("PROT")
var spawn = panics.GoroutineWrapperFunc(log)
