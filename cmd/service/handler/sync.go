package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/speechbot/speechbot/app/logic/v1"
	"github.com/speechbot/speechbot/app/response"
	"github.com/speechbot/speechbot/pkg/types"
	"github.com/speechbot/speechbot/pkg/utils"
)

type SyncRequest struct {
	Operations []types.SyncOperation `json:"operations" binding:"required"`
}

type SyncResponse struct {
	Results []types.SyncResult `json:"results"`
}

// Sync replays a batch of offline operations, oldest first.
func (s *HttpSrv) Sync(c *gin.Context) {
	var req SyncRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	results := v1.NewSyncLogic(c, s.Core).ApplyOperations(req.Operations)
	response.APISuccess(c, SyncResponse{Results: results})
}
