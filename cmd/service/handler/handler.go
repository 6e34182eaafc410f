package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/speechbot/speechbot/app/core"
)

type HttpSrv struct {
	Core   *core.Core
	Engine *gin.Engine
}
