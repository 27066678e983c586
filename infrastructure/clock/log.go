package clock

import (
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
	"github.com/gxcnet/gxcpeerd/util/panics"
)

var log = logger.RegisterSubSystem("CLCK")
var spawn = panics.GoroutineWrapperFunc(log)
