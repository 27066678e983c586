package handshake

import (
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("PROT")
